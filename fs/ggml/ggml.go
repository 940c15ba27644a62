// Package ggml - GGUF-Container fuer Modell-Checkpoints
//
// Dieses Modul definiert die Kernstrukturen:
// - GGML: Geladener Container (Header, KV-Metadaten, Tensor-Infos)
// - Decode: Liest einen Container aus einem Reader
// - Open: Oeffnet eine Datei und liefert Container samt Datei
// - Magic Constants: File-Format Erkennung
//
// Gelesen und geschrieben wird GGUF v3 (Little Endian). Tensor-Daten
// werden erst bei Bedarf ueber ReadFloats geladen.
package ggml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// GGML repraesentiert einen geladenen GGUF-Container
type GGML struct {
	*gguf

	// Length ist der Byte-Offset hinter dem Header (Beginn der Daten inkl. Padding)
	Length int64
}

// Magic Constants
const (
	// FILE_MAGIC_GGUF_LE fuer GGUF Little-Endian
	FILE_MAGIC_GGUF_LE = 0x46554747
	// FILE_MAGIC_GGUF_BE fuer GGUF Big-Endian
	FILE_MAGIC_GGUF_BE = 0x47475546
)

var (
	// ErrUnsupportedFormat wird zurueckgegeben wenn das Format nicht unterstuetzt wird
	ErrUnsupportedFormat = errors.New("unsupported model format")

	// ErrUnsupportedVersion fuer GGUF-Versionen vor v2
	ErrUnsupportedVersion = errors.New("unsupported gguf version")
)

// DetectContentType erkennt GGUF anhand der Magic-Bytes
func DetectContentType(b []byte) string {
	if len(b) < 4 {
		return ""
	}

	switch binary.LittleEndian.Uint32(b[:4]) {
	case FILE_MAGIC_GGUF_LE, FILE_MAGIC_GGUF_BE:
		return "gguf"
	default:
		return ""
	}
}

// Decode dekodiert Header, KV-Paare und Tensor-Infos.
//
// maxArraySize bestimmt die maximale Array-Groesse fuer KV-Werte.
// Bei negativem Wert werden alle Arrays gesammelt.
func Decode(rs io.ReadSeeker, maxArraySize int) (*GGML, error) {
	var magic uint32
	if err := binary.Read(rs, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}

	var order binary.ByteOrder
	switch magic {
	case FILE_MAGIC_GGUF_LE:
		order = binary.LittleEndian
	case FILE_MAGIC_GGUF_BE:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: invalid file magic %#x", ErrUnsupportedFormat, magic)
	}

	g := newGGUF(order, maxArraySize)
	if err := g.Decode(rs); err != nil {
		return nil, err
	}

	if err := CheckFileVersion(g.kv); err != nil {
		return nil, err
	}

	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	return &GGML{gguf: g, Length: offset}, nil
}

// Open oeffnet eine GGUF-Datei. Der Aufrufer schliesst die Datei;
// sie wird fuer ReadFloats gebraucht.
func Open(path string) (*GGML, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	g, err := Decode(f, -1)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	return g, f, nil
}
