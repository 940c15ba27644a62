package stylegan

import (
	"errors"
	"math/bits"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/ml/nn"
)

var approx = cmpopts.EquateApprox(1e-4, 1e-5)

// smallConfig haelt alle Kanaele bei 8, damit die Tests schnell bleiben
func smallConfig(size int) Config {
	c := DefaultConfig(size)
	c.ChannelMax = 8
	c.WDim = 8
	c.NMLP = 2
	c.EmbeddingDim = 4
	return c
}

func newTestModel(t *testing.T, c Config, seed uint64) *Model {
	t.Helper()

	m := NewModel(c)
	nn.InitAll(m, ml.NewRNG(seed))
	require.NoError(t, nn.CheckAll(m))

	// Rauschen soll im Bild sichtbar sein
	if m.Generator != nil {
		for _, sc := range append([]*StyledConv{m.Generator.Conv1}, m.Generator.Convs...) {
			sc.Noise.Weight = ml.Full(0.5, 1)
		}
	}
	return m
}

func TestConfigInvariants(t *testing.T) {
	for size := 4; size <= maxSize; size *= 2 {
		c := DefaultConfig(size)
		require.NoError(t, c.Validate())

		log2 := bits.Len(uint(size)) - 1
		if c.NLatent() != 2*log2-2 {
			t.Errorf("size %d: NLatent = %d, erwartet %d", size, c.NLatent(), 2*log2-2)
		}
		if c.NumLayers() != 2*(log2-2)+1 {
			t.Errorf("size %d: NumLayers = %d, erwartet %d", size, c.NumLayers(), 2*(log2-2)+1)
		}

		g := NewGenerator(c)
		if len(g.Noises) != c.NumLayers() {
			t.Errorf("size %d: %d Rausch-Buffer, erwartet %d", size, len(g.Noises), c.NumLayers())
		}
		if len(g.Convs) != 2*(log2-2) || len(g.ToRGBs) != log2-2 {
			t.Errorf("size %d: %d convs, %d to_rgbs", size, len(g.Convs), len(g.ToRGBs))
		}

		// Buffer-Aufloesungen entsprechen MakeNoise
		noises := g.MakeNoise(ml.NewRNG(0))
		if len(noises) != c.NumLayers() {
			t.Fatalf("size %d: MakeNoise liefert %d", size, len(noises))
		}
		for i, n := range noises {
			if n.Dim(2) != noiseSize(i) {
				t.Errorf("size %d: noise %d hat %d, erwartet %d", size, i, n.Dim(2), noiseSize(i))
			}
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"too small":        func(c *Config) { c.Size = 2 },
		"not power of two": func(c *Config) { c.Size = 48 },
		"too large":        func(c *Config) { c.Size = 2048 },
		"no multiplier":    func(c *Config) { c.ChannelMultiplier = 0 },
		"negative max":     func(c *Config) { c.ChannelMax = -1 },
		"short blur":       func(c *Config) { c.BlurKernel = []float32{1} },
		"nothing":          func(c *Config) { c.HasGenerator, c.HasDiscriminator = false, false },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig(64)
			mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate = %v, erwartet ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigFromKV(t *testing.T) {
	c := smallConfig(32)
	got, err := configFromKV(c.KV())
	require.NoError(t, err)

	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("Config (-erwartet +erhalten):\n%s", diff)
	}
}

func TestChannels(t *testing.T) {
	c := DefaultConfig(1024)
	want := map[int]int{4: 512, 8: 512, 16: 512, 32: 512, 64: 512, 128: 256, 256: 128, 512: 64, 1024: 32}
	for res, ch := range want {
		if got := c.Channels(res); got != ch {
			t.Errorf("Channels(%d) = %d, erwartet %d", res, got, ch)
		}
	}

	c.ChannelMultiplier = 1
	if got := c.Channels(64); got != 256 {
		t.Errorf("Channels(64) mit Multiplikator 1 = %d, erwartet 256", got)
	}

	// Ohne channel_max gilt die Tabelle auch fuer groessere Multiplikatoren
	c.ChannelMultiplier = 4
	if got := c.Channels(64); got != 1024 {
		t.Errorf("Channels(64) mit Multiplikator 4 = %d, erwartet 1024", got)
	}
	if got := c.Channels(4); got != 512 {
		t.Errorf("Channels(4) mit Multiplikator 4 = %d, erwartet 512", got)
	}

	c.ChannelMax = 8
	if got := c.Channels(4); got != 8 {
		t.Errorf("Channels(4) mit channel_max 8 = %d", got)
	}
	if got := c.Channels(64); got != 8 {
		t.Errorf("Channels(64) mit channel_max 8 = %d", got)
	}
}

func TestPixelNorm(t *testing.T) {
	x := ml.New([]float32{3, 4, 0, 0}, 2, 2)
	got := PixelNorm(x).Floats()

	// RMS von (3, 4) ist sqrt(12.5); Null-Vektoren bleiben 0
	want := []float32{0.8485281, 1.1313709, 0, 0}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("PixelNorm (-erwartet +erhalten):\n%s", diff)
	}
}

func TestGeneratorShapes(t *testing.T) {
	for _, size := range []int{4, 8, 16} {
		c := smallConfig(size)
		m := newTestModel(t, c, 1)

		out, err := m.Generator.Forward(ml.RandN(ml.NewRNG(2), 2, c.WDim), Options{RNG: ml.NewRNG(3)})
		require.NoError(t, err)

		if diff := cmp.Diff([]int{2, 3, size, size}, out.Image.Shape()); diff != "" {
			t.Errorf("size %d (-erwartet +erhalten):\n%s", size, diff)
		}
		if !out.Image.AllFinite() {
			t.Errorf("size %d: Bild enthaelt NaN/Inf", size)
		}
		if out.Mu != nil || out.Logvar != nil || out.Latents != nil {
			t.Errorf("size %d: mu, logvar und latents muessen nil sein", size)
		}
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	c := smallConfig(8)
	m := newTestModel(t, c, 1)
	z := ml.RandN(ml.NewRNG(2), 2, c.WDim)

	run := func(opts Options) *ml.Tensor {
		t.Helper()
		out, err := m.Generator.Forward(z, opts)
		require.NoError(t, err)
		return out.Image
	}

	a, b := run(Options{RNG: ml.NewRNG(9)}), run(Options{RNG: ml.NewRNG(9)})
	if !a.Equal(b) {
		t.Error("gleicher Seed liefert verschiedene Bilder")
	}

	if run(Options{RNG: ml.NewRNG(10)}).Equal(a) {
		t.Error("anderer Rausch-Seed aendert das Bild nicht")
	}

	// Ohne RNG wird bei jedem Aufruf neu gezogen
	if run(Options{}).Equal(run(Options{})) {
		t.Error("Rauschen ohne RNG ist bei zwei Aufrufen identisch")
	}

	// Feste Buffer sind unabhaengig vom RNG
	f1, f2 := run(Options{FixedNoise: true, RNG: ml.NewRNG(1)}), run(Options{FixedNoise: true, RNG: ml.NewRNG(2)})
	if !f1.Equal(f2) {
		t.Error("FixedNoise haengt vom RNG ab")
	}
}

func TestGeneratorLatents(t *testing.T) {
	c := smallConfig(16)
	m := newTestModel(t, c, 4)
	z := ml.RandN(ml.NewRNG(5), 3, c.WDim)
	noise := m.Generator.MakeNoise(ml.NewRNG(6))

	out, err := m.Generator.Forward(z, Options{Noise: noise, ReturnLatents: true})
	require.NoError(t, err)

	if diff := cmp.Diff([]int{3, c.NLatent(), c.WDim}, out.Latents.Shape()); diff != "" {
		t.Fatalf("Latents (-erwartet +erhalten):\n%s", diff)
	}

	// Alle Layer bekommen denselben Style
	w, err := m.Generator.GetLatent(z)
	require.NoError(t, err)
	for i := range c.NLatent() {
		if diff := cmp.Diff(w.Floats(), ml.Select(out.Latents, 1, i).Floats()); diff != "" {
			t.Errorf("Style %d weicht von GetLatent ab:\n%s", i, diff)
		}
	}

	// Zurueckgegebene Styles reproduzieren das Bild
	again, err := m.Generator.Forward(out.Latents, Options{InputIsLatent: true, Noise: noise})
	require.NoError(t, err)
	if diff := cmp.Diff(out.Image.Floats(), again.Image.Floats(), approx); diff != "" {
		t.Errorf("InputIsLatent (-erwartet +erhalten):\n%s", diff)
	}

	// Ein einzelner Style wird gebroadcastet
	single, err := m.Generator.Forward(w, Options{InputIsLatent: true, Noise: noise})
	require.NoError(t, err)
	if diff := cmp.Diff(out.Image.Floats(), single.Image.Floats(), approx); diff != "" {
		t.Errorf("Broadcast (-erwartet +erhalten):\n%s", diff)
	}
}

func TestGeneratorTruncation(t *testing.T) {
	c := smallConfig(8)
	m := newTestModel(t, c, 7)
	z := ml.RandN(ml.NewRNG(8), 2, c.WDim)

	avg, err := m.Generator.EstimateMeanLatent(64, ml.NewRNG(1))
	require.NoError(t, err)
	require.Equal(t, []int{1, c.WDim}, avg.Shape())

	out, err := m.Generator.Forward(z, Options{Truncation: 0.25, TruncationLatent: avg, FixedNoise: true, ReturnLatents: true})
	require.NoError(t, err)

	// Jeder Style liegt bei avg + 0.25·(w - avg)
	w, err := m.Generator.GetLatent(z)
	require.NoError(t, err)
	want := ml.Lerp(avg, w, 0.25)
	for i := range c.NLatent() {
		if diff := cmp.Diff(want.Floats(), ml.Select(out.Latents, 1, i).Floats(), approx); diff != "" {
			t.Fatalf("Style %d (-erwartet +erhalten):\n%s", i, diff)
		}
	}

	plain, err := m.Generator.Forward(z, Options{FixedNoise: true})
	require.NoError(t, err)

	// 0 und negative Werte schalten die Truncation ab
	for _, psi := range []float32{0, -0.5} {
		got, err := m.Generator.Forward(z, Options{Truncation: psi, TruncationLatent: avg, FixedNoise: true})
		require.NoError(t, err)
		if !plain.Image.Equal(got.Image) {
			t.Errorf("Truncation %v veraendert das Bild", psi)
		}
	}

	// Truncation 1 aendert nichts
	one, err := m.Generator.Forward(z, Options{Truncation: 1, TruncationLatent: avg, FixedNoise: true})
	require.NoError(t, err)
	if !plain.Image.Equal(one.Image) {
		t.Error("Truncation 1 veraendert das Bild")
	}
}

func TestGeneratorSkipAccumulation(t *testing.T) {
	c := smallConfig(16)
	m := newTestModel(t, c, 11)
	g := m.Generator

	for _, toRGB := range g.ToRGBs {
		toRGB.Conv.Weight = ml.Zeros(toRGB.Conv.Weight.Shape()...)
		toRGB.Bias = ml.Zeros(1, 3, 1, 1)
	}

	z := ml.RandN(ml.NewRNG(12), 2, c.WDim)
	noise := g.MakeNoise(ml.NewRNG(13))

	out, err := g.Forward(z, Options{Noise: noise, ReturnLatents: true})
	require.NoError(t, err)

	// Referenz: nur die 4x4-Stufe, danach reines Hochskalieren
	style := func(i int) *ml.Tensor { return ml.Select(out.Latents, 1, i) }
	x := g.Conv1.Forward(g.Input.Forward(2), style(0), noise[0], nil)
	want := g.ToRGB1.Forward(x, style(1), nil)
	up := nn.NewUpsample(c.BlurKernel, 2)
	for range g.ToRGBs {
		want = up.Forward(want)
	}

	if diff := cmp.Diff(want.Shape(), out.Image.Shape()); diff != "" {
		t.Fatalf("Shape (-erwartet +erhalten):\n%s", diff)
	}
	if diff := cmp.Diff(want.Floats(), out.Image.Floats(), approx); diff != "" {
		t.Errorf("Skip-Summation (-erwartet +erhalten):\n%s", diff)
	}
}

func TestGeneratorErrors(t *testing.T) {
	c := smallConfig(8)
	m := newTestModel(t, c, 1)
	g := m.Generator

	cases := map[string]struct {
		input *ml.Tensor
		opts  Options
		err   error
	}{
		"3d without latent flag": {ml.Zeros(1, c.NLatent(), c.WDim), Options{}, ml.ErrShape},
		"wrong style dim":        {ml.Zeros(1, c.WDim+1), Options{}, ml.ErrShape},
		"wrong sequence length":  {ml.Zeros(1, c.NLatent()+1, c.WDim), Options{InputIsLatent: true}, ml.ErrShape},
		"wrong noise count":      {ml.Zeros(1, c.WDim), Options{Noise: make([]*ml.Tensor, 1)}, ml.ErrShape},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := g.Forward(tt.input, tt.opts); !errors.Is(err, tt.err) {
				t.Errorf("Forward = %v, erwartet %v", err, tt.err)
			}
		})
	}

	t.Run("fixed noise without buffers", func(t *testing.T) {
		bare := NewGenerator(c)
		nn.InitAll(bare, ml.NewRNG(1))
		bare.Noises = make([]*ml.Tensor, c.NumLayers())

		if _, err := bare.Forward(ml.Zeros(1, c.WDim), Options{FixedNoise: true}); !errors.Is(err, ErrNoFixedNoise) {
			t.Errorf("Forward = %v, erwartet ErrNoFixedNoise", err)
		}
	})

	t.Run("partial noise buffers", func(t *testing.T) {
		g := NewGenerator(c)
		nn.InitAll(g, ml.NewRNG(1))
		g.Noises[0] = nil

		require.Error(t, g.CheckShapes())
	})
}

func TestEndToEnd64(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size model is slow")
	}

	c := DefaultConfig(64)
	m := newTestModel(t, c, 42)
	rng := ml.NewRNG(43)

	out, err := m.Generator.Forward(ml.RandN(rng, 2, c.WDim), Options{RNG: rng})
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 64, 64}, out.Image.Shape())
	require.True(t, out.Image.AllFinite())

	score, condLogits, err := m.Discriminator.Forward(out.Image, ml.RandN(rng, 2, c.EmbeddingDim))
	require.NoError(t, err)
	require.Equal(t, []int{2}, score.Shape())
	require.Equal(t, []int{2}, condLogits.Shape())
}
