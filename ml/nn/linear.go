// linear.go - Equalized Linear Layer
package nn

import (
	"cmp"
	"math"

	"github.com/7blacky7/stylegan/ml"
)

// LinearOptions konfiguriert einen EqualLinear.
// Nullwerte: mit Bias (Init 0), lrMul 1, ohne Aktivierung.
type LinearOptions struct {
	NoBias     bool
	BiasInit   float32
	LRMul      float32
	Activation bool
}

// EqualLinear skaliert die gespeicherten Gewichte zur Laufzeit mit
// lrMul/sqrt(in). Mit Aktivierung wird der Bias in der FusedLeakyReLU addiert.
type EqualLinear struct {
	Weight *ml.Tensor `gguf:"weight"`
	Bias   *ml.Tensor `gguf:"bias,opt"`

	in, out int
	opts    LinearOptions
	scale   float32
}

// NewEqualLinear erstellt einen Layer (in -> out)
func NewEqualLinear(in, out int, opts LinearOptions) *EqualLinear {
	opts.LRMul = cmp.Or(opts.LRMul, 1)
	return &EqualLinear{
		in:    in,
		out:   out,
		opts:  opts,
		scale: float32(1/math.Sqrt(float64(in))) * opts.LRMul,
	}
}

// InitWeights: Gewicht randn/lrMul, Bias konstant BiasInit
func (l *EqualLinear) InitWeights(rng *ml.RNG) {
	l.Weight = ml.Scale(ml.RandN(rng, l.out, l.in), 1/l.opts.LRMul)
	if !l.opts.NoBias {
		l.Bias = ml.Full(l.opts.BiasInit, l.out)
	}
}

func (l *EqualLinear) CheckShapes() error {
	if err := checkShape("equal_linear.weight", l.Weight, l.out, l.in); err != nil {
		return err
	}
	if l.opts.NoBias {
		return nil
	}
	return checkShape("equal_linear.bias", l.Bias, l.out)
}

// Forward berechnet x·(W·scale)ᵀ + bias·lrMul fuer x (B, in)
func (l *EqualLinear) Forward(x *ml.Tensor) *ml.Tensor {
	out := ml.Linear(x, ml.Scale(l.Weight, l.scale))

	var bias *ml.Tensor
	if l.Bias != nil {
		bias = ml.Scale(l.Bias, l.opts.LRMul)
	}

	if l.opts.Activation {
		return fusedLeakyReLU(out, bias)
	}
	if bias != nil {
		out = ml.Add(out, bias)
	}
	return out
}
