// create.go - Konstruktoren fuer Tensoren
// Enthaelt: New, Zeros, Ones, Full, Scalar, RandN, RandU
package ml

import "slices"

// New erstellt einen Tensor aus vorhandenen Daten (ohne Kopie)
func New(data []float32, shape ...int) *Tensor {
	if numel(shape) != len(data) {
		panic(shapeErrorf("new", "%d values do not fill shape %v", len(data), shape))
	}
	return &Tensor{shape: slices.Clone(shape), data: data}
}

// Zeros erstellt einen mit 0 gefuellten Tensor
func Zeros(shape ...int) *Tensor {
	for _, d := range shape {
		if d < 0 {
			panic(shapeErrorf("zeros", "negative dimension in %v", shape))
		}
	}
	return &Tensor{shape: slices.Clone(shape), data: make([]float32, numel(shape))}
}

// Full erstellt einen mit v gefuellten Tensor
func Full(v float32, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Ones erstellt einen mit 1 gefuellten Tensor
func Ones(shape ...int) *Tensor {
	return Full(1, shape...)
}

// Scalar erstellt einen 0-dimensionalen Tensor
func Scalar(v float32) *Tensor {
	return &Tensor{shape: []int{}, data: []float32{v}}
}

// RandN erstellt einen Tensor mit standardnormalverteilten Werten
func RandN(rng *RNG, shape ...int) *Tensor {
	t := Zeros(shape...)
	rng.fill(t.data)
	return t
}

// RandU erstellt einen Tensor mit gleichverteilten Werten in [lo, hi)
func RandU(rng *RNG, lo, hi float32, shape ...int) *Tensor {
	t := Zeros(shape...)
	rng.mu.Lock()
	defer rng.mu.Unlock()
	for i := range t.data {
		t.data[i] = lo + (hi-lo)*rng.src.Float32()
	}
	return t
}
