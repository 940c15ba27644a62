package ml

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-4)

func catch(fn func()) (err error) {
	defer Catch(&err)
	fn()
	return nil
}

func TestReshape(t *testing.T) {
	x := New([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	y := x.Reshape(3, -1)
	if diff := cmp.Diff([]int{3, 2}, y.Shape()); diff != "" {
		t.Errorf("Shape weicht ab (-erwartet +erhalten):\n%s", diff)
	}

	err := catch(func() { x.Reshape(4, -1) })
	if !errors.Is(err, ErrShape) {
		t.Errorf("Reshape(4, -1) Fehler = %v, erwartet ErrShape", err)
	}

	err = catch(func() { x.Reshape(5) })
	if !errors.Is(err, ErrShape) {
		t.Errorf("Reshape(5) Fehler = %v, erwartet ErrShape", err)
	}
}

func TestDim(t *testing.T) {
	x := Zeros(2, 3, 4)
	if x.Dim(-1) != 4 || x.Dim(0) != 2 {
		t.Errorf("Dim = (%d, %d), erwartet (2, 4)", x.Dim(0), x.Dim(-1))
	}
}

func TestCatchRethrows(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recover = %v, erwartet boom", r)
		}
	}()

	catch(func() { panic("boom") }) //nolint:errcheck
}

func TestAllFinite(t *testing.T) {
	if !Ones(3).AllFinite() {
		t.Error("Ones sollte endlich sein")
	}

	x := Ones(3)
	x.Data()[1] = float32(posInf())
	if x.AllFinite() {
		t.Error("Inf nicht erkannt")
	}
}

func TestRNGDeterministic(t *testing.T) {
	a := RandN(NewRNG(42), 16)
	b := RandN(NewRNG(42), 16)
	c := RandN(NewRNG(43), 16)

	if !a.Equal(b) {
		t.Error("gleicher Seed liefert unterschiedliche Werte")
	}
	if a.Equal(c) {
		t.Error("unterschiedliche Seeds liefern gleiche Werte")
	}
}

func posInf() float64 {
	zero := 0.0
	return 1 / zero
}
