// Modul: discriminator.go
// Beschreibung: Residualer StyleGAN2-Discriminator mit Minibatch-Stddev
// Hauptstrukturen:
//   - ConvLayer: [Blur] -> EqualConv2d -> Aktivierung
//   - ResBlock: Zwei 3x3-Convs mit 1x1-Skip, Ausgang / sqrt(2)
//   - Discriminator: Pyramide bis 4x4, Stddev-Feature, Linear-Kopf, CondLogits

package stylegan

import (
	"math"

	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/ml/nn"
)

const (
	stddevGroup = 4
	stddevFeat  = 1
	stddevEps   = 1e-8
)

// ConvLayer ist eine EqualConv2d mit optionalem Downsample-Blur davor.
// Mit Bias und Aktivierung liegt der Bias in der FusedLeakyReLU.
type ConvLayer struct {
	Conv     *nn.EqualConv2d    `gguf:"conv"`
	Activate *nn.FusedLeakyReLU `gguf:"activate"`

	blur   *nn.Blur
	scaled *nn.ScaledLeakyReLU
}

func newConvLayer(in, out, kernel int, downsample, bias, activate bool, blurKernel []float32) *ConvLayer {
	l := &ConvLayer{}

	opts := nn.ConvOptions{Stride: 1, Padding: kernel / 2, NoBias: !bias || activate}
	if downsample {
		const factor = 2
		p := (len(blurKernel) - factor) + (kernel - 1)
		l.blur = nn.NewBlur(blurKernel, (p+1)/2, p/2, 1)
		opts.Stride, opts.Padding = 2, 0
	}
	l.Conv = nn.NewEqualConv2d(in, out, kernel, opts)

	if activate {
		if bias {
			l.Activate = nn.NewFusedLeakyReLU(out)
		} else {
			l.scaled = nn.NewScaledLeakyReLU(0.2)
		}
	}

	return l
}

func (l *ConvLayer) Forward(x *ml.Tensor) *ml.Tensor {
	if l.blur != nil {
		x = l.blur.Forward(x)
	}
	x = l.Conv.Forward(x)
	switch {
	case l.Activate != nil:
		x = l.Activate.Forward(x)
	case l.scaled != nil:
		x = l.scaled.Forward(x)
	}
	return x
}

// ResBlock halbiert die Aufloesung
type ResBlock struct {
	Conv1 *ConvLayer `gguf:"conv1"`
	Conv2 *ConvLayer `gguf:"conv2"`
	Skip  *ConvLayer `gguf:"skip"`
}

func newResBlock(in, out int, blurKernel []float32) *ResBlock {
	return &ResBlock{
		Conv1: newConvLayer(in, in, 3, false, true, true, blurKernel),
		Conv2: newConvLayer(in, out, 3, true, true, true, blurKernel),
		Skip:  newConvLayer(in, out, 1, true, false, false, blurKernel),
	}
}

func (b *ResBlock) Forward(x *ml.Tensor) *ml.Tensor {
	out := b.Conv2.Forward(b.Conv1.Forward(x))
	skip := b.Skip.Forward(x)
	return ml.Scale(ml.Add(out, skip), float32(1/math.Sqrt2))
}

// Discriminator bewertet Bilder (B, 3, Size, Size)
type Discriminator struct {
	Input       *ConvLayer        `gguf:"input"`
	Blocks      []*ResBlock       `gguf:"blocks"`
	FinalConv   *ConvLayer        `gguf:"final_conv"`
	FinalLinear []*nn.EqualLinear `gguf:"final_linear"`
	CondLogits  *CondLogits       `gguf:"cond_logits"`

	config Config
}

// NewDiscriminator baut die Layer fuer c
func NewDiscriminator(c Config) *Discriminator {
	d := &Discriminator{
		Input:  newConvLayer(3, c.Channels(c.Size), 1, false, true, true, c.BlurKernel),
		config: c,
	}

	in := c.Channels(c.Size)
	for i := c.LogSize(); i > 2; i-- {
		out := c.Channels(1 << (i - 1))
		d.Blocks = append(d.Blocks, newResBlock(in, out, c.BlurKernel))
		in = out
	}

	ch4 := c.Channels(4)
	d.FinalConv = newConvLayer(in+1, ch4, 3, false, true, true, c.BlurKernel)
	d.FinalLinear = []*nn.EqualLinear{
		nn.NewEqualLinear(ch4*4*4, ch4, nn.LinearOptions{Activation: true}),
		nn.NewEqualLinear(ch4, 1, nn.LinearOptions{}),
	}
	d.CondLogits = NewCondLogits(ch4, c.EmbeddingDim, true)

	return d
}

// Forward gibt den Score (B) und, falls cCode (B, embedding_dim) gesetzt ist,
// die konditionalen Logits (B) in (0, 1) zurueck
func (d *Discriminator) Forward(image, cCode *ml.Tensor) (score, condLogits *ml.Tensor, err error) {
	defer ml.Catch(&err)

	c := d.config
	if image.NumDims() != 4 || image.Dim(1) != 3 || image.Dim(2) != c.Size || image.Dim(3) != c.Size {
		ml.Errorf("discriminator", "image must be (B, 3, %d, %d), got %v", c.Size, c.Size, image.Shape())
	}

	out := d.Input.Forward(image)
	for _, b := range d.Blocks {
		out = b.Forward(out)
	}

	out = ml.Concat(1, out, MinibatchStddev(out))
	out = d.FinalConv.Forward(out)

	if cCode != nil {
		condLogits = d.CondLogits.Forward(out, cCode)
	}

	batch := out.Dim(0)
	score = out.Reshape(batch, -1)
	for _, l := range d.FinalLinear {
		score = l.Forward(score)
	}

	return score.Reshape(batch), condLogits, nil
}

// MinibatchStddev berechnet das Stddev-Feature (B, 1, H, W) fuer x (B, C, H, W).
// Samples werden in Gruppen der Groesse min(B, 4) verglichen; Sample b gehoert
// zur Gruppe b mod (B/Gruppe).
func MinibatchStddev(x *ml.Tensor) *ml.Tensor {
	batch, channels, height, width := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)

	group := min(batch, stddevGroup)
	if batch%group != 0 {
		ml.Errorf("minibatch_stddev", "batch %d not divisible by group %d", batch, group)
	}

	y := x.Reshape(group, batch/group, stddevFeat, channels/stddevFeat, height, width)
	y = ml.Sqrt(ml.AddScalar(ml.Var(y, 0, false), stddevEps))
	y = ml.Squeeze(ml.Mean(y, []int{2, 3, 4}, true), 2)
	return ml.Repeat(y, group, 1, height, width)
}
