// conv.go - Equalized und normale 2D-Faltungen
package nn

import (
	"math"

	"github.com/7blacky7/stylegan/ml"
)

// ConvOptions konfiguriert die Faltungs-Layer
type ConvOptions struct {
	Stride  int
	Padding int
	NoBias  bool
}

// EqualConv2d skaliert die Gewichte zur Laufzeit mit 1/sqrt(in·k²)
type EqualConv2d struct {
	Weight *ml.Tensor `gguf:"weight"`
	Bias   *ml.Tensor `gguf:"bias,opt"`

	in, out, kernel int
	opts            ConvOptions
	scale           float32
}

func NewEqualConv2d(in, out, kernel int, opts ConvOptions) *EqualConv2d {
	return &EqualConv2d{
		in:     in,
		out:    out,
		kernel: kernel,
		opts:   opts,
		scale:  float32(1 / math.Sqrt(float64(in*kernel*kernel))),
	}
}

func (c *EqualConv2d) InitWeights(rng *ml.RNG) {
	c.Weight = ml.RandN(rng, c.out, c.in, c.kernel, c.kernel)
	if !c.opts.NoBias {
		c.Bias = ml.Zeros(c.out)
	}
}

func (c *EqualConv2d) CheckShapes() error {
	if err := checkShape("equal_conv2d.weight", c.Weight, c.out, c.in, c.kernel, c.kernel); err != nil {
		return err
	}
	if c.opts.NoBias {
		return nil
	}
	return checkShape("equal_conv2d.bias", c.Bias, c.out)
}

func (c *EqualConv2d) Forward(x *ml.Tensor) *ml.Tensor {
	return conv(x, ml.Scale(c.Weight, c.scale), c.Bias, c.opts)
}

// Conv2d ist eine Faltung ohne Gewichts-Skalierung
type Conv2d struct {
	Weight *ml.Tensor `gguf:"weight"`
	Bias   *ml.Tensor `gguf:"bias,opt"`

	in, out, kernel int
	opts            ConvOptions
}

func NewConv2d(in, out, kernel int, opts ConvOptions) *Conv2d {
	return &Conv2d{in: in, out: out, kernel: kernel, opts: opts}
}

// InitWeights: gleichverteilt in ±1/sqrt(fan_in) fuer Gewicht und Bias
func (c *Conv2d) InitWeights(rng *ml.RNG) {
	bound := float32(1 / math.Sqrt(float64(c.in*c.kernel*c.kernel)))
	c.Weight = ml.RandU(rng, -bound, bound, c.out, c.in, c.kernel, c.kernel)
	if !c.opts.NoBias {
		c.Bias = ml.RandU(rng, -bound, bound, c.out)
	}
}

func (c *Conv2d) CheckShapes() error {
	if err := checkShape("conv2d.weight", c.Weight, c.out, c.in, c.kernel, c.kernel); err != nil {
		return err
	}
	if c.opts.NoBias {
		return nil
	}
	return checkShape("conv2d.bias", c.Bias, c.out)
}

func (c *Conv2d) Forward(x *ml.Tensor) *ml.Tensor {
	return conv(x, c.Weight, c.Bias, c.opts)
}

func conv(x, w, bias *ml.Tensor, opts ConvOptions) *ml.Tensor {
	out := ml.Conv2D(x, w, ml.ConvOptions{Stride: opts.Stride, Padding: opts.Padding})
	if bias != nil {
		out = ml.Add(out, channelView(bias, 4))
	}
	return out
}
