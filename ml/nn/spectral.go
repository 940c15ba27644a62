// spectral.go - Spektral normierte Faltung
package nn

import (
	"math"

	"github.com/7blacky7/stylegan/ml"
)

// l2Eps verhindert Division durch 0 bei der Vektor-Normierung
const l2Eps = 1e-12

// SpectralNormConv2d teilt das Gewicht durch eine Schaetzung seines groessten
// Singulaerwerts. Die Schaetzung macht eine Power-Iteration ab dem
// gespeicherten u; U und V werden dabei nicht veraendert.
type SpectralNormConv2d struct {
	WeightBar *ml.Tensor `gguf:"weight_bar"`
	U         *ml.Tensor `gguf:"weight_u"`
	V         *ml.Tensor `gguf:"weight_v"`
	Bias      *ml.Tensor `gguf:"bias,opt"`

	in, out, kernel int
	opts            ConvOptions
}

func NewSpectralNormConv2d(in, out, kernel int, opts ConvOptions) *SpectralNormConv2d {
	return &SpectralNormConv2d{in: in, out: out, kernel: kernel, opts: opts}
}

func (c *SpectralNormConv2d) InitWeights(rng *ml.RNG) {
	inner := Conv2d{in: c.in, out: c.out, kernel: c.kernel, opts: c.opts}
	inner.InitWeights(rng)
	c.WeightBar, c.Bias = inner.Weight, inner.Bias

	c.U = l2normalize(ml.RandN(rng, c.out))
	c.V = l2normalize(ml.RandN(rng, c.in*c.kernel*c.kernel))
}

func (c *SpectralNormConv2d) CheckShapes() error {
	if err := checkShape("spectral_norm.weight_bar", c.WeightBar, c.out, c.in, c.kernel, c.kernel); err != nil {
		return err
	}
	if err := checkShape("spectral_norm.weight_u", c.U, c.out); err != nil {
		return err
	}
	if err := checkShape("spectral_norm.weight_v", c.V, c.in*c.kernel*c.kernel); err != nil {
		return err
	}
	if c.opts.NoBias {
		return nil
	}
	return checkShape("spectral_norm.bias", c.Bias, c.out)
}

// Sigma schaetzt den groessten Singulaerwert von WeightBar als (out, in·k·k)
func (c *SpectralNormConv2d) Sigma() float32 {
	w := c.WeightBar.Reshape(c.out, -1)

	v := l2normalize(ml.MatVec(w, c.U, true))
	wv := ml.MatVec(w, v, false)
	u := l2normalize(wv)

	return dot(u.Data(), wv.Data())
}

func (c *SpectralNormConv2d) Forward(x *ml.Tensor) *ml.Tensor {
	w := ml.Scale(c.WeightBar, 1/c.Sigma())
	return conv(x, w, c.Bias, c.opts)
}

func l2normalize(v *ml.Tensor) *ml.Tensor {
	norm := math.Sqrt(float64(dot(v.Data(), v.Data())))
	return ml.Scale(v, float32(1/(norm+l2Eps)))
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
