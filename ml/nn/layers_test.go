package nn

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/stylegan/ml"
)

func TestEqualLinear(t *testing.T) {
	l := NewEqualLinear(4, 2, LinearOptions{BiasInit: 1})
	l.InitWeights(ml.NewRNG(0))
	l.Weight = ml.Ones(2, 4)

	// 4 Eingaben · 1/sqrt(4) + Bias 1
	got := l.Forward(ml.Ones(3, 4))
	if diff := cmp.Diff([]float32{3, 3, 3, 3, 3, 3}, got.Data(), approx); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}
}

func TestEqualLinearLRMul(t *testing.T) {
	l := NewEqualLinear(4, 1, LinearOptions{LRMul: 0.01, Activation: true})
	l.Weight = ml.Full(-100, 1, 4)
	l.Bias = ml.Full(50, 1)

	// 4·(-100)·0.01/2 = -2, Bias·0.01 = 0.5 -> leaky(-1.5)·sqrt(2)
	got := l.Forward(ml.Ones(1, 4))
	want := float32(-1.5 * 0.2 * math.Sqrt2)
	if diff := cmp.Diff([]float32{want}, got.Data(), approx); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}
}

func TestEqualLinearInit(t *testing.T) {
	l := NewEqualLinear(8, 8, LinearOptions{LRMul: 0.01, BiasInit: 1})
	l.InitWeights(ml.NewRNG(1))

	require.NoError(t, l.CheckShapes())

	// randn/lrMul: Werte deutlich groesser als 1
	var maxAbs float32
	for _, v := range l.Weight.Data() {
		maxAbs = max(maxAbs, float32(math.Abs(float64(v))))
	}
	if maxAbs < 10 {
		t.Errorf("max |w| = %f, erwartet Skalierung mit 1/lrMul", maxAbs)
	}

	if diff := cmp.Diff(ml.Ones(8).Data(), l.Bias.Data()); diff != "" {
		t.Errorf("Bias weicht ab:\n%s", diff)
	}
}

func TestFusedLeakyReLU(t *testing.T) {
	a := NewFusedLeakyReLU(2)
	a.Bias = ml.New([]float32{1, -1}, 2)

	x := ml.New([]float32{0, 0, -2, 2}, 1, 2, 1, 2)
	got := a.Forward(x)

	s := float32(math.Sqrt2)
	want := []float32{1 * s, 1 * s, -3 * 0.2 * s, 1 * s}
	if diff := cmp.Diff(want, got.Data(), approx); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}

	scaled := NewScaledLeakyReLU(0.2).Forward(ml.New([]float32{-1, 1}, 2))
	if diff := cmp.Diff([]float32{-0.2 * s, s}, scaled.Data(), approx); diff != "" {
		t.Errorf("ScaledLeakyReLU weicht ab:\n%s", diff)
	}
}

func TestEqualConv2d(t *testing.T) {
	c := NewEqualConv2d(2, 1, 1, ConvOptions{})
	c.Weight = ml.Ones(1, 2, 1, 1)
	c.Bias = ml.Full(0.5, 1)

	// 2 Kanaele · 1/sqrt(2)
	got := c.Forward(ml.Ones(1, 2, 2, 2))
	want := float32(2/math.Sqrt2 + 0.5)
	if diff := cmp.Diff([]float32{want, want, want, want}, got.Data(), approx); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}
}

func TestSpectralNorm(t *testing.T) {
	c := NewSpectralNormConv2d(1, 2, 1, ConvOptions{})
	c.WeightBar = ml.New([]float32{3, 4}, 2, 1, 1, 1)
	c.U = ml.New([]float32{1, 0}, 2)
	c.V = ml.New([]float32{1}, 1)
	c.Bias = ml.Zeros(2)
	require.NoError(t, c.CheckShapes())

	if diff := cmp.Diff(float32(5), c.Sigma(), approx); diff != "" {
		t.Errorf("Sigma weicht ab:\n%s", diff)
	}

	got := c.Forward(ml.Ones(1, 1, 1, 2))
	if diff := cmp.Diff([]float32{0.6, 0.6, 0.8, 0.8}, got.Data(), approx); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}

	// gespeicherte Vektoren bleiben unveraendert
	if diff := cmp.Diff([]float32{1, 0}, c.U.Data()); diff != "" {
		t.Errorf("U veraendert:\n%s", diff)
	}
}

func TestNoiseInjection(t *testing.T) {
	n := NewNoiseInjection()
	n.InitWeights(nil)

	x := ml.RandN(ml.NewRNG(2), 2, 3, 4, 4)
	if got := n.Forward(x, nil, ml.NewRNG(3)); !got.Equal(x) {
		t.Error("Gewicht 0 sollte die Eingabe nicht veraendern")
	}

	n.Weight = ml.Full(0.5, 1)
	noise := ml.Full(2, 1, 1, 4, 4)
	got := n.Forward(ml.Zeros(2, 3, 4, 4), noise, nil)
	for _, v := range got.Data() {
		if v != 1 {
			t.Fatalf("Wert = %f, erwartet 1", v)
		}
	}
}

func TestInitAllDeterministic(t *testing.T) {
	build := func() *ModulatedConv2d {
		return NewModulatedConv2d(4, 3, 3, 8, ModulatedOptions{})
	}

	a, b := build(), build()
	if err := CheckAll(a); err == nil {
		t.Error("CheckAll vor InitAll sollte fehlschlagen")
	}

	InitAll(a, ml.NewRNG(9))
	InitAll(b, ml.NewRNG(9))
	require.NoError(t, CheckAll(a))

	if !a.Weight.Equal(b.Weight) || !a.Modulation.Weight.Equal(b.Modulation.Weight) {
		t.Error("gleicher Seed liefert unterschiedliche Gewichte")
	}

	// Modulation startet mit Bias 1
	if diff := cmp.Diff(ml.Ones(4).Data(), a.Modulation.Bias.Data()); diff != "" {
		t.Errorf("Modulations-Bias weicht ab:\n%s", diff)
	}
}

func TestInitAllSlices(t *testing.T) {
	type block struct {
		Conv *EqualConv2d `gguf:"conv"`
		Act  *FusedLeakyReLU
	}
	type net struct {
		Blocks []block `gguf:"blk"`
	}

	n := &net{Blocks: make([]block, 2)}
	for i := range n.Blocks {
		n.Blocks[i] = block{Conv: NewEqualConv2d(2, 2, 3, ConvOptions{Padding: 1}), Act: NewFusedLeakyReLU(2)}
	}

	InitAll(n, ml.NewRNG(4))
	require.NoError(t, CheckAll(n))
	if n.Blocks[0].Conv.Weight.Equal(n.Blocks[1].Conv.Weight) {
		t.Error("Bloecke sollten unterschiedlich initialisiert sein")
	}
}
