package nn

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/7blacky7/stylegan/ml"
)

var approx = cmpopts.EquateApprox(0, 1e-4)

func TestMakeKernel(t *testing.T) {
	k := MakeKernel([]float32{1, 3, 3, 1})
	if diff := cmp.Diff([]int{4, 4}, k.Shape()); diff != "" {
		t.Fatalf("Shape weicht ab:\n%s", diff)
	}

	var sum float32
	for _, v := range k.Data() {
		sum += v
	}
	if diff := cmp.Diff(float32(1), sum, approx); diff != "" {
		t.Errorf("Summe weicht ab:\n%s", diff)
	}

	if diff := cmp.Diff(float32(9)/64, k.Data()[5], approx); diff != "" {
		t.Errorf("k[1][1] weicht ab:\n%s", diff)
	}
}

func TestResampleShapes(t *testing.T) {
	x := ml.RandN(ml.NewRNG(1), 2, 3, 8, 8)

	cases := []struct {
		name string
		fn   func(*ml.Tensor) *ml.Tensor
		size int
	}{
		{"blur", NewBlur(DefaultBlurKernel, 2, 1, 1).Forward, 8},
		{"upsample", NewUpsample(DefaultBlurKernel, 2).Forward, 16},
		{"downsample", NewDownsample(DefaultBlurKernel, 2).Forward, 4},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(x)
			if diff := cmp.Diff([]int{2, 3, tt.size, tt.size}, got.Shape()); diff != "" {
				t.Errorf("Shape weicht ab:\n%s", diff)
			}
		})
	}
}

func TestUpsamplePreservesConstant(t *testing.T) {
	// Ein konstantes Bild bleibt im Inneren konstant (Gain factor² gleicht die Nullen aus)
	x := ml.Full(2, 1, 1, 6, 6)
	got := NewUpsample(DefaultBlurKernel, 2).Forward(x)

	for y := 2; y < 10; y++ {
		for xx := 2; xx < 10; xx++ {
			if v := got.Data()[y*12+xx]; v < 1.999 || v > 2.001 {
				t.Fatalf("Wert bei (%d, %d) = %f, erwartet 2", y, xx, v)
			}
		}
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{5, 2, 2},
		{-1, 2, -1},
		{-4, 2, -2},
		{0, 2, 0},
	}
	for _, tt := range cases {
		if got := floorDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("floorDiv(%d, %d) = %d, erwartet %d", tt.a, tt.b, got, tt.want)
		}
	}
}
