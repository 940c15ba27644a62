// noise.go - Additives Rauschen mit gelerntem Skalar
package nn

import "github.com/7blacky7/stylegan/ml"

// NoiseInjection berechnet x + weight·noise
type NoiseInjection struct {
	Weight *ml.Tensor `gguf:"weight"`
}

func NewNoiseInjection() *NoiseInjection {
	return &NoiseInjection{}
}

func (n *NoiseInjection) InitWeights(*ml.RNG) {
	n.Weight = ml.Zeros(1)
}

func (n *NoiseInjection) CheckShapes() error {
	return checkShape("noise.weight", n.Weight, 1)
}

// Forward addiert noise (B oder 1, 1, H, W). Ist noise nil, wird frisches
// Rauschen (B, 1, H, W) aus rng gezogen.
func (n *NoiseInjection) Forward(x, noise *ml.Tensor, rng *ml.RNG) *ml.Tensor {
	if noise == nil {
		noise = ml.RandN(rng, x.Dim(0), 1, x.Dim(2), x.Dim(3))
	}
	return ml.Add(x, ml.Mul(n.Weight, noise))
}
