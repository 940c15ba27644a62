// Package ggml - GGUF Decode
//
// Dieses Modul enthaelt das Lesen von GGUF-Dateien:
// - gguf: Header, KV-Paare und Tensor-Infos
// - Decode: Deserialisierung von KV-Paaren und Tensor-Infos
// - readGGUF*: Lese-Funktionen fuer Basistypen und Strings
package ggml

import (
	"encoding/binary"
	"fmt"
	"io"
)

// GGUF Type Constants - Identifikatoren der KV-Datentypen
const (
	ggufTypeUint8 uint32 = iota
	ggufTypeInt8
	ggufTypeUint16
	ggufTypeInt16
	ggufTypeUint32
	ggufTypeInt32
	ggufTypeFloat32
	ggufTypeBool
	ggufTypeString
	ggufTypeArray
	ggufTypeUint64
	ggufTypeInt64
	ggufTypeFloat64
)

// defaultAlignment ist das Tensor-Alignment, falls general.alignment fehlt
const defaultAlignment = 32

// gguf repraesentiert Header und Metadaten einer GGUF-Datei
type gguf struct {
	ByteOrder binary.ByteOrder
	Version   uint32

	NumTensor uint64
	NumKV     uint64

	kv      KV
	tensors []*Tensor

	parameters   uint64
	tensorOffset uint64

	maxArraySize int
	scratch      [16 << 10]byte
}

func newGGUF(order binary.ByteOrder, maxArraySize int) *gguf {
	return &gguf{
		ByteOrder:    order,
		kv:           make(KV),
		maxArraySize: maxArraySize,
	}
}

// KV gibt die Key-Value Paare zurueck
func (llm *gguf) KV() KV {
	return llm.kv
}

// Tensors gibt die Tensor-Infos zurueck
func (llm *gguf) Tensors() Tensors {
	return Tensors{
		items:  llm.tensors,
		Offset: llm.tensorOffset,
	}
}

// Decode liest Header (ohne Magic), KV-Paare und Tensor-Infos
func (llm *gguf) Decode(rs io.ReadSeeker) error {
	var err error
	if llm.Version, err = readGGUF[uint32](llm, rs); err != nil {
		return err
	}

	// v1 hatte 32-bit Zaehler und null-terminierte Strings
	if llm.Version < 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, llm.Version)
	}

	if llm.NumTensor, err = readGGUF[uint64](llm, rs); err != nil {
		return err
	}
	if llm.NumKV, err = readGGUF[uint64](llm, rs); err != nil {
		return err
	}

	for range llm.NumKV {
		k, err := readGGUFString(llm, rs)
		if err != nil {
			return err
		}

		v, err := llm.readValue(rs)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		llm.kv[k] = v
	}

	if err := llm.decodeTensors(rs); err != nil {
		return err
	}

	llm.kv["general.parameter_count"] = llm.parameters

	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	alignment := llm.kv.Uint("general.alignment", defaultAlignment)
	llm.tensorOffset = uint64(offset + ggufPadding(offset, int64(alignment)))

	// Tensor-Offsets gegen das Alignment pruefen
	for _, t := range llm.tensors {
		if t.Offset%uint64(alignment) != 0 {
			return fmt.Errorf("tensor %s: offset %d not aligned to %d", t.Name, t.Offset, alignment)
		}
	}

	return nil
}

// readValue liest einen typisierten KV-Wert
func (llm *gguf) readValue(r io.Reader) (any, error) {
	t, err := readGGUF[uint32](llm, r)
	if err != nil {
		return nil, err
	}

	switch t {
	case ggufTypeUint8:
		return readGGUF[uint8](llm, r)
	case ggufTypeInt8:
		return readGGUF[int8](llm, r)
	case ggufTypeUint16:
		return readGGUF[uint16](llm, r)
	case ggufTypeInt16:
		return readGGUF[int16](llm, r)
	case ggufTypeUint32:
		return readGGUF[uint32](llm, r)
	case ggufTypeInt32:
		return readGGUF[int32](llm, r)
	case ggufTypeUint64:
		return readGGUF[uint64](llm, r)
	case ggufTypeInt64:
		return readGGUF[int64](llm, r)
	case ggufTypeFloat32:
		return readGGUF[float32](llm, r)
	case ggufTypeFloat64:
		return readGGUF[float64](llm, r)
	case ggufTypeBool:
		return readGGUF[bool](llm, r)
	case ggufTypeString:
		return readGGUFString(llm, r)
	case ggufTypeArray:
		return readGGUFArray(llm, r)
	default:
		return nil, fmt.Errorf("invalid type: %d", t)
	}
}

// decodeTensors liest alle Tensor-Infos
func (llm *gguf) decodeTensors(r io.Reader) error {
	for range llm.NumTensor {
		name, err := readGGUFString(llm, r)
		if err != nil {
			return fmt.Errorf("failed to read tensor name: %w", err)
		}

		dims, err := readGGUF[uint32](llm, r)
		if err != nil {
			return fmt.Errorf("failed to read tensor dimensions: %w", err)
		}

		shape := make([]uint64, dims)
		for i := range shape {
			if shape[i], err = readGGUF[uint64](llm, r); err != nil {
				return fmt.Errorf("failed to read tensor shape: %w", err)
			}
		}

		kind, err := readGGUF[uint32](llm, r)
		if err != nil {
			return fmt.Errorf("failed to read tensor kind: %w", err)
		}
		if !TensorType(kind).Supported() {
			return fmt.Errorf("tensor %s: %w", name, &UnsupportedTypeError{Type: TensorType(kind)})
		}

		offset, err := readGGUF[uint64](llm, r)
		if err != nil {
			return fmt.Errorf("failed to read tensor offset: %w", err)
		}

		t := &Tensor{Name: name, Kind: kind, Offset: offset, Shape: shape}
		llm.tensors = append(llm.tensors, t)
		llm.parameters += t.Elements()
	}
	return nil
}

// readGGUF liest einen typisierten Wert
func readGGUF[T any](llm *gguf, r io.Reader) (T, error) {
	var t T
	err := binary.Read(r, llm.ByteOrder, &t)
	return t, err
}

// readGGUFString liest einen String mit 64-bit Laengen-Prefix
func readGGUFString(llm *gguf, r io.Reader) (string, error) {
	buf := llm.scratch[:8]
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	length := int(llm.ByteOrder.Uint64(buf))
	if length > len(llm.scratch) {
		buf = make([]byte, length)
	} else {
		buf = llm.scratch[:length]
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// discardGGUFString ueberspringt einen String
func discardGGUFString(llm *gguf, r io.Reader) error {
	buf := llm.scratch[:8]
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}

	_, err := io.CopyN(io.Discard, r, int64(llm.ByteOrder.Uint64(buf)))
	return err
}

// ggufPadding berechnet das Padding fuer Alignment
func ggufPadding(offset, align int64) int64 {
	return (align - offset%align) % align
}
