// Package ml - Dichte float32-Tensoren und CPU-Kernel
//
// Dieses Paket stellt die Rechen-Engine fuer die Bildmodelle bereit:
// - Tensor: Zeilenweise gespeicherter float32-Tensor (NCHW fuer Bilder)
// - Elementweise Operationen mit Broadcasting (math.go)
// - Reduktionen und Shape-Operationen (reduce.go, shape.go)
// - MatMul, Conv2D, ConvTranspose2D via BLAS (matmul.go, conv.go)
// - UpFirDn2D fuer FIR-Resampling (upfirdn.go)
//
// Alle Operationen sind funktional: Eingaben werden nie veraendert,
// jede Operation liefert einen neuen Tensor.
package ml

import (
	"fmt"
	"math"
	"slices"
)

// Tensor ist ein dichter float32-Tensor in Row-Major-Reihenfolge
type Tensor struct {
	shape []int
	data  []float32
}

// Shape gibt eine Kopie der Dimensionen zurueck
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

// Dim gibt die Groesse einer Dimension zurueck, negative Indizes zaehlen von hinten
func (t *Tensor) Dim(n int) int {
	return t.shape[t.axis(n)]
}

// NumDims gibt die Anzahl der Dimensionen zurueck
func (t *Tensor) NumDims() int {
	return len(t.shape)
}

// Len gibt die Anzahl der Elemente zurueck
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data gibt die zugrundeliegenden Werte zurueck (keine Kopie)
func (t *Tensor) Data() []float32 {
	return t.data
}

// Floats gibt eine Kopie der Werte zurueck
func (t *Tensor) Floats() []float32 {
	return slices.Clone(t.data)
}

// Clone erstellt eine tiefe Kopie
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: slices.Clone(t.shape), data: slices.Clone(t.data)}
}

// Reshape liefert eine Sicht mit neuer Shape auf dieselben Daten.
// Eine Dimension darf -1 sein und wird aus den restlichen berechnet.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	shape = slices.Clone(shape)

	infer, known := -1, 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d < 0:
			panic(shapeErrorf("reshape", "invalid dimension %d in %v", d, shape))
		default:
			known *= d
		}
	}

	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			panic(shapeErrorf("reshape", "cannot infer dimension of %v from %d elements", shape, len(t.data)))
		}
		shape[infer] = len(t.data) / known
	} else if known != len(t.data) {
		panic(shapeErrorf("reshape", "cannot reshape %v into %v", t.shape, shape))
	}

	return &Tensor{shape: shape, data: t.data}
}

// Equal prueft Shape und Werte auf exakte Gleichheit
func (t *Tensor) Equal(o *Tensor) bool {
	return slices.Equal(t.shape, o.shape) && slices.Equal(t.data, o.data)
}

// AllFinite prueft, dass kein Wert NaN oder Inf ist
func (t *Tensor) AllFinite() bool {
	for _, v := range t.data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// String gibt eine kurze Beschreibung zurueck
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v)", t.shape)
}

// axis normalisiert einen (moeglicherweise negativen) Achsen-Index
func (t *Tensor) axis(n int) int {
	if n < 0 {
		n += len(t.shape)
	}
	if n < 0 || n >= len(t.shape) {
		panic(shapeErrorf("axis", "axis %d out of range for %v", n, t.shape))
	}
	return n
}

// numel berechnet die Elementanzahl einer Shape
func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// strides berechnet die Row-Major-Strides einer Shape
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}
