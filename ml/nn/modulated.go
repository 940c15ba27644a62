// modulated.go - Style-modulierte Faltung
package nn

import (
	"math"
	"slices"

	"github.com/7blacky7/stylegan/ml"
)

// demodEps schuetzt die Demodulation vor Division durch 0
const demodEps = 1e-8

// ModulatedOptions konfiguriert eine ModulatedConv2d.
// Nullwerte: mit Demodulation, ohne Resampling, Blur-Kernel [1, 3, 3, 1].
type ModulatedOptions struct {
	NoDemodulate bool
	Upsample     bool
	Downsample   bool
	BlurKernel   []float32
}

// ModulatedConv2d skaliert den gemeinsamen Kernel pro Sample mit dem Style
// und normiert ihn optional pro Ausgabekanal (Demodulation).
//
// Weight ist (out, in, k, k); Modulation projiziert den Style auf in Kanaele.
type ModulatedConv2d struct {
	Weight     *ml.Tensor   `gguf:"weight"`
	Modulation *EqualLinear `gguf:"mod"`

	in, out, kernel int
	opts            ModulatedOptions
	scale           float32
	blur            *Blur
}

// NewModulatedConv2d erstellt die Faltung. Die Modulation startet mit Bias 1,
// damit der Style anfangs die Identitaet ist.
func NewModulatedConv2d(in, out, kernel, styleDim int, opts ModulatedOptions) *ModulatedConv2d {
	if opts.BlurKernel == nil {
		opts.BlurKernel = DefaultBlurKernel
	}
	opts.BlurKernel = slices.Clone(opts.BlurKernel)

	m := &ModulatedConv2d{
		Modulation: NewEqualLinear(styleDim, in, LinearOptions{BiasInit: 1}),
		in:         in,
		out:        out,
		kernel:     kernel,
		opts:       opts,
		scale:      float32(1 / math.Sqrt(float64(in*kernel*kernel))),
	}

	const factor = 2
	n := len(opts.BlurKernel)
	switch {
	case opts.Upsample:
		p := (n - factor) - (kernel - 1)
		m.blur = NewBlur(opts.BlurKernel, floorDiv(p+1, 2)+factor-1, floorDiv(p, 2)+1, factor)
	case opts.Downsample:
		p := (n - factor) + (kernel - 1)
		m.blur = NewBlur(opts.BlurKernel, floorDiv(p+1, 2), floorDiv(p, 2), 1)
	}

	return m
}

func (m *ModulatedConv2d) InitWeights(rng *ml.RNG) {
	m.Weight = ml.RandN(rng, m.out, m.in, m.kernel, m.kernel)
}

func (m *ModulatedConv2d) CheckShapes() error {
	return checkShape("modulated_conv2d.weight", m.Weight, m.out, m.in, m.kernel, m.kernel)
}

// InChannels und OutChannels liefern die Kanalzahlen
func (m *ModulatedConv2d) InChannels() int { return m.in }
func (m *ModulatedConv2d) OutChannels() int { return m.out }

// Forward faltet x (B, in, H, W) mit dem pro Sample modulierten Kernel.
// style ist (B, styleDim).
func (m *ModulatedConv2d) Forward(x, style *ml.Tensor) *ml.Tensor {
	if x.NumDims() != 4 || x.Dim(1) != m.in {
		ml.Errorf("modulated_conv2d", "expected input (B, %d, H, W), got %v", m.in, x.Shape())
	}

	b, h, w := x.Dim(0), x.Dim(2), x.Dim(3)
	k := m.kernel

	s := m.Modulation.Forward(style)
	if s.Dim(0) != b {
		ml.Errorf("modulated_conv2d", "style batch %d does not match input batch %d", s.Dim(0), b)
	}

	// (1, out, in, k, k) · (B, 1, in, 1, 1) -> (B, out, in, k, k)
	weight := ml.Mul(
		ml.Scale(m.Weight, m.scale).Reshape(1, m.out, m.in, k, k),
		s.Reshape(b, 1, m.in, 1, 1),
	)

	if !m.opts.NoDemodulate {
		demod := ml.Rsqrt(ml.Sum(ml.Square(weight), []int{2, 3, 4}, false), demodEps)
		weight = ml.Mul(weight, demod.Reshape(b, m.out, 1, 1, 1))
	}

	var out *ml.Tensor
	switch {
	case m.opts.Upsample:
		// Transponierte Faltung erwartet (in, out/groups, k, k) pro Gruppe
		weight = ml.Transpose(weight, 1, 2).Reshape(b*m.in, m.out, k, k)
		out = ml.ConvTranspose2D(x.Reshape(1, b*m.in, h, w), weight, ml.ConvOptions{Stride: 2, Groups: b})
		out = m.blur.Forward(out.Reshape(b, m.out, out.Dim(2), out.Dim(3)))
	case m.opts.Downsample:
		x = m.blur.Forward(x)
		out = ml.Conv2D(x.Reshape(1, b*m.in, x.Dim(2), x.Dim(3)), weight.Reshape(b*m.out, m.in, k, k), ml.ConvOptions{Stride: 2, Groups: b})
		out = out.Reshape(b, m.out, out.Dim(2), out.Dim(3))
	default:
		out = ml.Conv2D(x.Reshape(1, b*m.in, h, w), weight.Reshape(b*m.out, m.in, k, k), ml.ConvOptions{Padding: k / 2, Groups: b})
		out = out.Reshape(b, m.out, out.Dim(2), out.Dim(3))
	}

	return out
}
