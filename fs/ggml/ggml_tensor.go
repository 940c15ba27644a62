// Package ggml - Tensor Datenstrukturen
//
// Dieses Modul enthaelt Tensor-bezogene Typen und Methoden:
// - Tensor: Einzelner Tensor mit Name, Shape, Kind
// - Tensors: Sammlung von Tensor-Infos mit Daten-Offset
// - ReadFloats/NewTensor: Dekodieren und Kodieren der Tensor-Daten
//
// Shapes liegen wie in ggml in umgekehrter Reihenfolge vor (ne0 ist die
// innerste Dimension). Dims liefert die Row-Major-Reihenfolge.
package ggml

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Tensors repraesentiert eine Sammlung von Tensor-Infos
type Tensors struct {
	items  []*Tensor
	Offset uint64
}

// Items gibt Tensors zurueck, optional gefiltert nach Prefix
func (s Tensors) Items(prefix ...string) []*Tensor {
	if len(prefix) == 0 {
		return s.items
	}

	var items []*Tensor
	for _, t := range s.items {
		if strings.HasPrefix(t.Name, prefix[0]) {
			items = append(items, t)
		}
	}

	return items
}

// Names gibt alle Tensor-Namen sortiert zurueck
func (s Tensors) Names() []string {
	names := make([]string, len(s.items))
	for i, t := range s.items {
		names[i] = t.Name
	}
	slices.Sort(names)
	return names
}

// Tensor repraesentiert einen einzelnen GGUF-Tensor
type Tensor struct {
	Name   string `json:"name"`
	Kind   uint32 `json:"kind"`
	Offset uint64 `json:"-"`

	// Shape ist die Anzahl der Elemente je Dimension, innerste zuerst
	Shape []uint64 `json:"shape"`

	io.WriterTo `json:"-"`
}

// Elements gibt die Gesamtanzahl der Elemente zurueck
func (t Tensor) Elements() uint64 {
	var count uint64 = 1
	for _, n := range t.Shape {
		count *= n
	}
	return count
}

// Size gibt die Groesse der Daten in Bytes zurueck
func (t Tensor) Size() uint64 {
	return t.Elements() * TensorType(t.Kind).TypeSize()
}

// Type gibt den Typ-Namen als String zurueck
func (t Tensor) Type() string {
	return TensorType(t.Kind).String()
}

// Dims gibt die Shape in Row-Major-Reihenfolge zurueck
func (t Tensor) Dims() []int {
	dims := make([]int, len(t.Shape))
	for i, n := range t.Shape {
		dims[len(dims)-1-i] = int(n)
	}
	return dims
}

// ReadFloats liest und dekodiert die Tensor-Daten. base ist Tensors.Offset.
func (t Tensor) ReadFloats(r io.ReaderAt, base uint64) ([]float32, error) {
	kind := TensorType(t.Kind)
	if !kind.Supported() {
		return nil, &UnsupportedTypeError{Type: kind}
	}

	b := make([]byte, t.Size())
	if _, err := r.ReadAt(b, int64(base+t.Offset)); err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}

	return decodeFloats(kind, b), nil
}

// NewTensor erstellt einen schreibbaren Tensor aus Row-Major-Daten
func NewTensor(name string, kind TensorType, dims []int, data []float32) *Tensor {
	shape := make([]uint64, len(dims))
	for i, d := range dims {
		shape[len(dims)-1-i] = uint64(d)
	}

	return &Tensor{
		Name:     name,
		Kind:     uint32(kind),
		Shape:    shape,
		WriterTo: floatWriter{kind: kind, data: data},
	}
}

// floatWriter kodiert float32-Werte beim Schreiben in den Ziel-Typ
type floatWriter struct {
	kind TensorType
	data []float32
}

func (w floatWriter) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(encodeFloats(w.kind, w.data))
	return int64(n), err
}

func decodeFloats(kind TensorType, b []byte) []float32 {
	switch kind {
	case TensorTypeF16:
		out := make([]float32, len(b)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
		}
		return out
	case TensorTypeBF16:
		return bfloat16.DecodeFloat32(b)
	default:
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return out
	}
}

func encodeFloats(kind TensorType, data []float32) []byte {
	switch kind {
	case TensorTypeF16:
		b := make([]byte, 2*len(data))
		for i, v := range data {
			binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(v).Bits())
		}
		return b
	case TensorTypeBF16:
		return bfloat16.EncodeFloat32(data)
	default:
		b := make([]byte, 4*len(data))
		for i, v := range data {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
		}
		return b
	}
}
