// Modul: blocks.go
// Beschreibung: Bausteine der Synthese
// Hauptstrukturen:
//   - ConstantInput: Gelernter 4x4 Start-Tensor
//   - StyledConv: ModulatedConv2d -> NoiseInjection -> FusedLeakyReLU
//   - ToRGB: Projektion auf 3 Kanaele mit Skip-Summation

package stylegan

import (
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/ml/nn"
)

// ConstantInput ist der gelernte Start-Tensor (1, C, 4, 4)
type ConstantInput struct {
	Input *ml.Tensor `gguf:"input"`

	channels int
}

func newConstantInput(channels int) *ConstantInput {
	return &ConstantInput{channels: channels}
}

func (c *ConstantInput) InitWeights(rng *ml.RNG) {
	c.Input = ml.RandN(rng, 1, c.channels, 4, 4)
}

func (c *ConstantInput) CheckShapes() error {
	if !equalShape(c.Input, 1, c.channels, 4, 4) {
		return shapeError("const_input.input", c.Input, 1, c.channels, 4, 4)
	}
	return nil
}

// Forward wiederholt den Start-Tensor ueber den Batch
func (c *ConstantInput) Forward(batch int) *ml.Tensor {
	return ml.Repeat(c.Input, batch, 1, 1, 1)
}

// StyledConv ist ein Synthese-Layer mit Modulation, Rauschen und Aktivierung
type StyledConv struct {
	Conv     *nn.ModulatedConv2d `gguf:"conv"`
	Noise    *nn.NoiseInjection  `gguf:"noise"`
	Activate *nn.FusedLeakyReLU  `gguf:"activate"`
}

func newStyledConv(in, out, kernel int, c Config, upsample bool) *StyledConv {
	return &StyledConv{
		Conv: nn.NewModulatedConv2d(in, out, kernel, c.WDim, nn.ModulatedOptions{
			Upsample:   upsample,
			BlurKernel: c.BlurKernel,
		}),
		Noise:    nn.NewNoiseInjection(),
		Activate: nn.NewFusedLeakyReLU(out),
	}
}

// Forward: noise darf nil sein, dann wird aus rng gezogen
func (s *StyledConv) Forward(x, style, noise *ml.Tensor, rng *ml.RNG) *ml.Tensor {
	out := s.Conv.Forward(x, style)
	out = s.Noise.Forward(out, noise, rng)
	return s.Activate.Forward(out)
}

// ToRGB projiziert Features auf RGB und addiert den hochskalierten Skip
type ToRGB struct {
	Conv *nn.ModulatedConv2d `gguf:"conv"`
	Bias *ml.Tensor          `gguf:"bias"`

	upsample *nn.Upsample
}

func newToRGB(in int, c Config, upsample bool) *ToRGB {
	t := &ToRGB{
		Conv: nn.NewModulatedConv2d(in, 3, 1, c.WDim, nn.ModulatedOptions{NoDemodulate: true}),
	}
	if upsample {
		t.upsample = nn.NewUpsample(c.BlurKernel, 2)
	}
	return t
}

func (t *ToRGB) InitWeights(*ml.RNG) {
	t.Bias = ml.Zeros(1, 3, 1, 1)
}

func (t *ToRGB) CheckShapes() error {
	if !equalShape(t.Bias, 1, 3, 1, 1) {
		return shapeError("to_rgb.bias", t.Bias, 1, 3, 1, 1)
	}
	return nil
}

// Forward: skip ist das RGB-Bild der vorigen Stufe oder nil
func (t *ToRGB) Forward(x, style, skip *ml.Tensor) *ml.Tensor {
	out := ml.Add(t.Conv.Forward(x, style), t.Bias)
	if skip != nil {
		if t.upsample != nil {
			skip = t.upsample.Forward(skip)
		}
		out = ml.Add(out, skip)
	}
	return out
}
