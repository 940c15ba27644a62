// Modul: mapping.go
// Beschreibung: Mapping-Netz vom Latent-Raum Z in den Style-Raum W
// Hauptstrukturen:
//   - PixelNorm: Normierung auf RMS 1 ueber die Kanal-Achse
//   - Mapping: n_mlp EqualLinear-Layer mit FusedLeakyReLU

package stylegan

import (
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/ml/nn"
)

// pixelNormEps verhindert Division durch 0 bei Null-Vektoren
const pixelNormEps = 1e-8

// PixelNorm berechnet x·rsqrt(mean(x², Achse 1) + 1e-8)
func PixelNorm(x *ml.Tensor) *ml.Tensor {
	return ml.Mul(x, ml.Rsqrt(ml.Mean(ml.Square(x), []int{1}, true), pixelNormEps))
}

// Mapping ist das MLP von Z nach W
type Mapping []*nn.EqualLinear

func newMapping(c Config) Mapping {
	m := make(Mapping, c.NMLP)
	for i := range m {
		m[i] = nn.NewEqualLinear(c.WDim, c.WDim, nn.LinearOptions{LRMul: c.LRMLP, Activation: true})
	}
	return m
}

// Forward bildet x (B, w_dim) auf W ab
func (m Mapping) Forward(x *ml.Tensor) *ml.Tensor {
	for _, l := range m {
		x = l.Forward(x)
	}
	return x
}
