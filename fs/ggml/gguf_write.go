// Package ggml - GGUF Write Operations
//
// Dieses Modul enthaelt Funktionen zum Schreiben von GGUF-Dateien:
// - WriteGGUF: Schreibt eine komplette Datei mit KV und Tensors (v3)
// - ggufWriteKV: Key-Value Paar Serialisierung
// - ggufWriteTensorInfo: Tensor-Metadaten Serialisierung
package ggml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/fs"
)

// WriteGGUF schreibt KV-Paare und Tensors. Keys ohne general.- oder
// Architektur-Prefix bekommen den Architektur-Prefix. Tensor-Daten werden
// parallel an ihre Offsets geschrieben.
func WriteGGUF(f *os.File, kv fs.Config, ts []*Tensor) error {
	arch := kv.String("general.architecture")
	if arch == "" {
		return errors.New("architecture not set")
	}

	// Magic "GGUF", Version 3, Anzahl Tensors, Anzahl KV
	for _, v := range []any{[]byte("GGUF"), uint32(3), uint64(len(ts)), uint64(kv.Len())} {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, key := range slices.Sorted(kv.Keys()) {
		if err := ggufWriteKV(f, arch, key, kv.Value(key)); err != nil {
			return err
		}
	}

	slices.SortStableFunc(ts, func(a, b *Tensor) int {
		return strings.Compare(a.Name, b.Name)
	})

	alignment := kv.Uint("general.alignment", defaultAlignment)

	var s uint64
	for _, t := range ts {
		t.Offset = s
		if err := ggufWriteTensorInfo(f, t); err != nil {
			return err
		}
		s += t.Size()
		s += uint64(ggufPadding(int64(s), int64(alignment)))
	}

	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	offset += ggufPadding(offset, int64(alignment))

	var g errgroup.Group
	g.SetLimit(envconfig.NumThreads())
	for _, t := range ts {
		w := io.NewOffsetWriter(f, offset+int64(t.Offset))
		g.Go(func() error {
			_, err := t.WriteTo(w)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Datei bis zum Ende des letzten Paddings auffuellen
	return f.Truncate(offset + int64(s))
}

func writeGGUF[V any](w io.Writer, t uint32, v V) error {
	if err := binary.Write(w, binary.LittleEndian, t); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v)
}

func writeGGUFString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeGGUFArray[S ~[]E, E any](w io.Writer, t uint32, s S) error {
	for _, v := range []uint32{ggufTypeArray, t} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}

	// Strings muessen einzeln geschrieben werden
	if strs, ok := any(s).([]string); ok {
		for _, e := range strs {
			if err := writeGGUFString(w, e); err != nil {
				return err
			}
		}
		return nil
	}

	return binary.Write(w, binary.LittleEndian, s)
}

// ggufWriteKV schreibt ein Key-Value Paar
func ggufWriteKV(w io.Writer, arch, k string, v any) error {
	if !strings.HasPrefix(k, arch+".") && !strings.HasPrefix(k, "general.") {
		k = arch + "." + k
	}

	slog.Debug(k, "type", fmt.Sprintf("%T", v))

	if err := writeGGUFString(w, k); err != nil {
		return err
	}

	switch v := v.(type) {
	case int32:
		return writeGGUF(w, ggufTypeInt32, v)
	case uint32:
		return writeGGUF(w, ggufTypeUint32, v)
	case FileType:
		return writeGGUF(w, ggufTypeUint32, uint32(v))
	case uint64:
		return writeGGUF(w, ggufTypeUint64, v)
	case float32:
		return writeGGUF(w, ggufTypeFloat32, v)
	case bool:
		return writeGGUF(w, ggufTypeBool, v)
	case string:
		if err := binary.Write(w, binary.LittleEndian, ggufTypeString); err != nil {
			return err
		}
		return writeGGUFString(w, v)
	case []int32:
		return writeGGUFArray(w, ggufTypeInt32, v)
	case *array[int32]:
		return writeGGUFArray(w, ggufTypeInt32, v.values)
	case []uint32:
		return writeGGUFArray(w, ggufTypeUint32, v)
	case *array[uint32]:
		return writeGGUFArray(w, ggufTypeUint32, v.values)
	case []float32:
		return writeGGUFArray(w, ggufTypeFloat32, v)
	case *array[float32]:
		return writeGGUFArray(w, ggufTypeFloat32, v.values)
	case []string:
		return writeGGUFArray(w, ggufTypeString, v)
	case *array[string]:
		return writeGGUFArray(w, ggufTypeString, v.values)
	default:
		return fmt.Errorf("improper type for '%s': %T", k, v)
	}
}

// ggufWriteTensorInfo schreibt Name, Shape, Typ und Offset eines Tensors
func ggufWriteTensorInfo(w io.Writer, t *Tensor) error {
	slog.Debug(t.Name, "kind", t.Kind, "shape", t.Shape, "offset", t.Offset)

	if err := writeGGUFString(w, t.Name); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(t.Shape))); err != nil {
		return err
	}
	for _, n := range t.Shape {
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, t.Kind); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.Offset)
}
