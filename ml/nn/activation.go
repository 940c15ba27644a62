// activation.go - Aktivierungen mit Varianz-erhaltendem Gain
package nn

import (
	"math"

	"github.com/7blacky7/stylegan/ml"
)

const (
	// leakySlope ist die negative Steigung aller LeakyReLUs im Netz
	leakySlope = 0.2

	// sqrt2 gleicht den Varianzverlust der LeakyReLU aus
	sqrt2 = float32(math.Sqrt2)
)

// FusedLeakyReLU addiert einen gelernten Bias auf Achse 1 und aktiviert
type FusedLeakyReLU struct {
	Bias *ml.Tensor `gguf:"bias"`

	channels int
}

// NewFusedLeakyReLU erstellt die Aktivierung fuer channels Kanaele
func NewFusedLeakyReLU(channels int) *FusedLeakyReLU {
	return &FusedLeakyReLU{channels: channels}
}

func (a *FusedLeakyReLU) InitWeights(*ml.RNG) {
	a.Bias = ml.Zeros(a.channels)
}

func (a *FusedLeakyReLU) CheckShapes() error {
	return checkShape("fused_leaky_relu.bias", a.Bias, a.channels)
}

// Forward berechnet leaky_relu(x + bias, 0.2) * sqrt(2)
func (a *FusedLeakyReLU) Forward(x *ml.Tensor) *ml.Tensor {
	return fusedLeakyReLU(x, a.Bias)
}

// ScaledLeakyReLU ist die bias-freie Variante
type ScaledLeakyReLU struct {
	slope float32
}

func NewScaledLeakyReLU(slope float32) *ScaledLeakyReLU {
	return &ScaledLeakyReLU{slope: slope}
}

func (a *ScaledLeakyReLU) Forward(x *ml.Tensor) *ml.Tensor {
	return ml.Scale(ml.LeakyReLU(x, a.slope), sqrt2)
}

// fusedLeakyReLU broadcastet bias (C) ueber Achse 1 von x. bias darf nil sein.
func fusedLeakyReLU(x, bias *ml.Tensor) *ml.Tensor {
	if bias != nil {
		x = ml.Add(x, channelView(bias, x.NumDims()))
	}
	return ml.Scale(ml.LeakyReLU(x, leakySlope), sqrt2)
}

// channelView formt einen Vektor (C) zu (1, C, 1, ...) mit ndims Achsen
func channelView(v *ml.Tensor, ndims int) *ml.Tensor {
	shape := make([]int, max(ndims, 2))
	for i := range shape {
		shape[i] = 1
	}
	shape[1] = v.Len()
	return v.Reshape(shape...)
}
