package ml

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPermute(t *testing.T) {
	x := New([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := Permute(x, 1, 0)
	if diff := cmp.Diff([]int{3, 2}, got.Shape()); diff != "" {
		t.Errorf("Shape weicht ab:\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 4, 2, 5, 3, 6}, got.Data()); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}

	// Eingabe bleibt unveraendert
	if diff := cmp.Diff([]float32{1, 2, 3, 4, 5, 6}, x.Data()); diff != "" {
		t.Errorf("Eingabe veraendert:\n%s", diff)
	}
}

func TestPermute3D(t *testing.T) {
	data := make([]float32, 24)
	for i := range data {
		data[i] = float32(i)
	}
	x := New(data, 2, 3, 4)

	got := Permute(x, 2, 0, 1)
	if diff := cmp.Diff([]int{4, 2, 3}, got.Shape()); diff != "" {
		t.Errorf("Shape weicht ab:\n%s", diff)
	}

	// got[k, i, j] == x[i, j, k]
	for i := range 2 {
		for j := range 3 {
			for k := range 4 {
				want := x.Data()[(i*3+j)*4+k]
				if v := got.Data()[(k*2+i)*3+j]; v != want {
					t.Fatalf("got[%d,%d,%d] = %v, erwartet %v", k, i, j, v, want)
				}
			}
		}
	}
}

func TestPermuteInvalid(t *testing.T) {
	err := catch(func() { Permute(Zeros(2, 3), 0, 0) })
	if !errors.Is(err, ErrShape) {
		t.Errorf("Fehler = %v, erwartet ErrShape", err)
	}
}

func TestConcat(t *testing.T) {
	a := New([]float32{1, 2, 3, 4}, 2, 2)
	b := New([]float32{5, 6}, 2, 1)

	got := Concat(1, a, b)
	if diff := cmp.Diff([]int{2, 3}, got.Shape()); diff != "" {
		t.Errorf("Shape weicht ab:\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 2, 5, 3, 4, 6}, got.Data()); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}

	err := catch(func() { Concat(0, a, b) })
	if !errors.Is(err, ErrShape) {
		t.Errorf("Fehler = %v, erwartet ErrShape", err)
	}
}

func TestRepeat(t *testing.T) {
	x := New([]float32{1, 2}, 1, 2)

	got := Repeat(x, 2, 2)
	if diff := cmp.Diff([]int{2, 4}, got.Shape()); diff != "" {
		t.Errorf("Shape weicht ab:\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 2, 1, 2, 1, 2, 1, 2}, got.Data()); diff != "" {
		t.Errorf("Werte weichen ab:\n%s", diff)
	}

	// Zusaetzliche fuehrende Achse wie torch.repeat
	got = Repeat(New([]float32{7}, 1), 3, 1)
	if diff := cmp.Diff([]int{3, 1}, got.Shape()); diff != "" {
		t.Errorf("Shape weicht ab:\n%s", diff)
	}
}

func TestNarrowSelect(t *testing.T) {
	x := New([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := Narrow(x, 1, 1, 2)
	if diff := cmp.Diff([]float32{2, 3, 5, 6}, got.Data()); diff != "" {
		t.Errorf("Narrow weicht ab:\n%s", diff)
	}

	row := Select(x, 0, 1)
	if diff := cmp.Diff([]int{3}, row.Shape()); diff != "" {
		t.Errorf("Select Shape weicht ab:\n%s", diff)
	}
	if diff := cmp.Diff([]float32{4, 5, 6}, row.Data()); diff != "" {
		t.Errorf("Select weicht ab:\n%s", diff)
	}

	err := catch(func() { Narrow(x, 1, 2, 2) })
	if !errors.Is(err, ErrShape) {
		t.Errorf("Fehler = %v, erwartet ErrShape", err)
	}
}

func TestUnsqueezeSqueeze(t *testing.T) {
	x := Zeros(2, 3)
	if diff := cmp.Diff([]int{2, 1, 3}, Unsqueeze(x, 1).Shape()); diff != "" {
		t.Errorf("Unsqueeze weicht ab:\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3, 1}, Unsqueeze(x, -1).Shape()); diff != "" {
		t.Errorf("Unsqueeze(-1) weicht ab:\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3}, Squeeze(Zeros(2, 1, 3), 1).Shape()); diff != "" {
		t.Errorf("Squeeze weicht ab:\n%s", diff)
	}
}

func TestMatMul(t *testing.T) {
	a := New([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := New([]float32{1, 0, 0, 1, 1, 1}, 3, 2)

	got := MatMul(a, b)
	if diff := cmp.Diff([]float32{4, 5, 10, 11}, got.Data()); diff != "" {
		t.Errorf("MatMul weicht ab:\n%s", diff)
	}

	// Linear: x·wᵀ
	w := New([]float32{1, 1, 1, 0, 1, 0}, 2, 3)
	lin := Linear(a, w)
	if diff := cmp.Diff([]float32{6, 2, 15, 5}, lin.Data()); diff != "" {
		t.Errorf("Linear weicht ab:\n%s", diff)
	}

	v := New([]float32{1, 1}, 2)
	if diff := cmp.Diff([]float32{5, 7, 9}, MatVec(a, v, true).Data()); diff != "" {
		t.Errorf("MatVec transponiert weicht ab:\n%s", diff)
	}
}
