// Modul: generator.go
// Beschreibung: StyleGAN2-Generator mit Skip-Summation
// Hauptstrukturen:
//   - Generator: Mapping-Netz, konstanter Start, Synthese-Pyramide
//   - Options: Steuerung von Truncation, Rauschen und Latent-Eingabe
//   - Output: Bild, vestigiale mu/logvar-Slots und Styles
//   - Forward: Stufen 0-4 (PixelNorm, Mapping, Truncation, Broadcast, Synthese)

package stylegan

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/7blacky7/stylegan/ml"
)

// ErrNoFixedNoise wird bei FixedNoise ohne geladene Rausch-Buffer zurueckgegeben
var ErrNoFixedNoise = errors.New("model has no fixed noise buffers")

// Generator erzeugt Bilder (B, 3, Size, Size) aus Latents oder Styles
type Generator struct {
	Mapping Mapping        `gguf:"mapping"`
	Input   *ConstantInput `gguf:"const_input"`
	Conv1   *StyledConv    `gguf:"conv1"`
	ToRGB1  *ToRGB         `gguf:"to_rgb1"`
	Convs   []*StyledConv  `gguf:"convs"`
	ToRGBs  []*ToRGB       `gguf:"to_rgbs"`

	// Noises sind die festen Rausch-Buffer je Layer, Index i hat die
	// Aufloesung 2^((i+5)/2)
	Noises []*ml.Tensor `gguf:"noises,opt"`

	// MeanLatent ist ein gespeicherter W-Mittelwert (1, w_dim) fuer Truncation
	MeanLatent *ml.Tensor `gguf:"mean_latent,opt"`

	config Config
}

// NewGenerator baut die Layer fuer c. Gewichte werden per InitAll
// oder beim Laden gesetzt.
func NewGenerator(c Config) *Generator {
	g := &Generator{
		Mapping: newMapping(c),
		Input:   newConstantInput(c.Channels(4)),
		Conv1:   newStyledConv(c.Channels(4), c.Channels(4), 3, c, false),
		ToRGB1:  newToRGB(c.Channels(4), c, false),
		Noises:  make([]*ml.Tensor, c.NumLayers()),
		config:  c,
	}

	in := c.Channels(4)
	for i := 3; i <= c.LogSize(); i++ {
		out := c.Channels(1 << i)
		g.Convs = append(g.Convs,
			newStyledConv(in, out, 3, c, true),
			newStyledConv(out, out, 3, c, false),
		)
		g.ToRGBs = append(g.ToRGBs, newToRGB(out, c, true))
		in = out
	}

	return g
}

// Config gibt die Hyperparameter zurueck
func (g *Generator) Config() Config {
	return g.config
}

// noiseSize ist die Aufloesung des Rausch-Buffers i
func noiseSize(i int) int {
	return 1 << ((i + 5) / 2)
}

// InitWeights zieht die festen Rausch-Buffer
func (g *Generator) InitWeights(rng *ml.RNG) {
	for i := range g.Noises {
		n := noiseSize(i)
		g.Noises[i] = ml.RandN(rng, 1, 1, n, n)
	}
}

func (g *Generator) CheckShapes() error {
	var errs []error
	loaded := 0
	for i, t := range g.Noises {
		if t == nil {
			continue
		}
		loaded++
		if n := noiseSize(i); !equalShape(t, 1, 1, n, n) {
			errs = append(errs, shapeError(fmt.Sprintf("noises.%d", i), t, 1, 1, n, n))
		}
	}
	if loaded != 0 && loaded != len(g.Noises) {
		errs = append(errs, fmt.Errorf("noises: %d of %d buffers present", loaded, len(g.Noises)))
	}

	if g.MeanLatent != nil && !equalShape(g.MeanLatent, 1, g.config.WDim) {
		errs = append(errs, shapeError("mean_latent", g.MeanLatent, 1, g.config.WDim))
	}
	return errors.Join(errs...)
}

// HasFixedNoise meldet, ob die Rausch-Buffer geladen sind
func (g *Generator) HasFixedNoise() bool {
	return len(g.Noises) > 0 && !slices.Contains(g.Noises, nil)
}

// Options steuert Generator.Forward. Der Nullwert mappt die Eingabe,
// ohne Truncation, mit frischem Rauschen aus RNG.
type Options struct {
	// InputIsLatent ueberspringt PixelNorm und Mapping: die Eingabe ist
	// bereits ein Style (B, w_dim) oder eine Style-Sequenz (B, n_latent, w_dim)
	InputIsLatent bool

	// Truncation in (0, 1) interpoliert Richtung TruncationLatent (1, w_dim).
	// Ohne TruncationLatent bleibt die Truncation aus.
	Truncation       float32
	TruncationLatent *ml.Tensor

	// Noise gibt das Rauschen je Layer explizit vor (Laenge NumLayers).
	// Sonst: FixedNoise nutzt die Buffer, ansonsten wird aus RNG gezogen.
	Noise      []*ml.Tensor
	FixedNoise bool

	// RNG fuer frisches Rauschen. Ohne RNG zieht jeder Aufruf neues,
	// nicht reproduzierbares Rauschen.
	RNG *ml.RNG

	ReturnLatents bool
}

// Output ist das Ergebnis von Generator.Forward. Mu und Logvar sind
// Platzhalter fuer eine Konditionierungs-Augmentation und immer nil.
type Output struct {
	Image   *ml.Tensor
	Mu      *ml.Tensor
	Logvar  *ml.Tensor
	Latents *ml.Tensor
}

// Forward erzeugt Bilder aus input (B, w_dim), bei InputIsLatent auch
// (B, n_latent, w_dim)
func (g *Generator) Forward(input *ml.Tensor, opts Options) (out *Output, err error) {
	defer ml.Catch(&err)

	c := g.config

	// Stufe 0 und 1: Normierung und Mapping
	latents := input
	if !opts.InputIsLatent {
		if input.NumDims() != 2 {
			ml.Errorf("generator", "input must be (B, %d), got %v", c.WDim, input.Shape())
		}
		latents = g.Mapping.Forward(PixelNorm(input))
	}

	if latents.Dim(-1) != c.WDim {
		ml.Errorf("generator", "style dimension %d, expected %d", latents.Dim(-1), c.WDim)
	}

	// Stufe 2: Truncation
	if opts.Truncation > 0 && opts.Truncation < 1 && opts.TruncationLatent != nil {
		latents = ml.Lerp(opts.TruncationLatent, latents, opts.Truncation)
	}

	// Stufe 3: Broadcast auf n_latent Styles
	switch latents.NumDims() {
	case 2:
		latents = ml.Repeat(ml.Unsqueeze(latents, 1), 1, c.NLatent(), 1)
	case 3:
		if latents.Dim(1) != c.NLatent() {
			ml.Errorf("generator", "style sequence has %d entries, expected %d", latents.Dim(1), c.NLatent())
		}
	default:
		ml.Errorf("generator", "invalid style shape %v", latents.Shape())
	}

	noise, err := g.noise(opts)
	if err != nil {
		return nil, err
	}

	rng := opts.RNG
	if rng == nil {
		rng = ml.NewRNG(rand.Uint64())
	}
	style := func(i int) *ml.Tensor { return ml.Select(latents, 1, i) }

	// Stufe 4: Synthese mit Skip-Summation
	x := g.Input.Forward(latents.Dim(0))
	x = g.Conv1.Forward(x, style(0), noise[0], rng)
	skip := g.ToRGB1.Forward(x, style(1), nil)

	i := 1
	for j, toRGB := range g.ToRGBs {
		x = g.Convs[2*j].Forward(x, style(i), noise[2*j+1], rng)
		x = g.Convs[2*j+1].Forward(x, style(i+1), noise[2*j+2], rng)
		skip = toRGB.Forward(x, style(i+2), skip)
		i += 2
	}

	out = &Output{Image: skip}
	if opts.ReturnLatents {
		out.Latents = latents
	}
	return out, nil
}

// noise waehlt das Rauschen je Layer; nil-Eintraege werden frisch gezogen
func (g *Generator) noise(opts Options) ([]*ml.Tensor, error) {
	n := g.config.NumLayers()
	switch {
	case opts.Noise != nil:
		if len(opts.Noise) != n {
			return nil, fmt.Errorf("%w: generator: %d noise tensors, expected %d", ml.ErrShape, len(opts.Noise), n)
		}
		return opts.Noise, nil
	case opts.FixedNoise:
		if !g.HasFixedNoise() {
			return nil, ErrNoFixedNoise
		}
		return g.Noises, nil
	default:
		return make([]*ml.Tensor, n), nil
	}
}

// MakeNoise zieht frisches Rauschen (1, 1, r, r) fuer jeden Layer
func (g *Generator) MakeNoise(rng *ml.RNG) []*ml.Tensor {
	noises := []*ml.Tensor{ml.RandN(rng, 1, 1, 4, 4)}
	for i := 3; i <= g.config.LogSize(); i++ {
		for range 2 {
			noises = append(noises, ml.RandN(rng, 1, 1, 1<<i, 1<<i))
		}
	}
	return noises
}

// GetLatent bildet z (B, w_dim) auf W ab, mit derselben Normierung wie Forward
func (g *Generator) GetLatent(z *ml.Tensor) (w *ml.Tensor, err error) {
	defer ml.Catch(&err)
	return g.Mapping.Forward(PixelNorm(z)), nil
}

// EstimateMeanLatent schaetzt den W-Mittelwert (1, w_dim) aus n gezogenen Latents
func (g *Generator) EstimateMeanLatent(n int, rng *ml.RNG) (*ml.Tensor, error) {
	if n < 1 {
		return nil, fmt.Errorf("mean latent needs at least one sample, got %d", n)
	}

	w, err := g.GetLatent(ml.RandN(rng, n, g.config.WDim))
	if err != nil {
		return nil, err
	}
	return ml.Mean(w, []int{0}, true), nil
}

// equalShape vergleicht die Shape eines (moeglicherweise nil) Tensors
func equalShape(t *ml.Tensor, want ...int) bool {
	return t != nil && slices.Equal(t.Shape(), want)
}

func shapeError(name string, t *ml.Tensor, want ...int) error {
	if t == nil {
		return fmt.Errorf("%s: missing tensor", name)
	}
	return fmt.Errorf("%s: expected shape %v, got %v", name, want, t.Shape())
}
