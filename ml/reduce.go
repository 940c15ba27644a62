// reduce.go - Reduktionen ueber Achsen
// Enthaelt: Sum, Mean, Var
package ml

import "slices"

// Sum summiert ueber die angegebenen Achsen (alle Achsen, falls leer)
func Sum(t *Tensor, axes []int, keepdim bool) *Tensor {
	keep, reduced := reduceShapes(t, axes)
	out := Zeros(keep...)

	ost := strides(keep)
	for i := range keep {
		if reduced[i] {
			ost[i] = 0
		}
	}

	idx := make([]int, len(t.shape))
	var o int
	for _, v := range t.data {
		out.data[o] += v
		for d := len(t.shape) - 1; d >= 0; d-- {
			idx[d]++
			o += ost[d]
			if idx[d] < t.shape[d] {
				break
			}
			o -= ost[d] * t.shape[d]
			idx[d] = 0
		}
	}

	if !keepdim {
		out.shape = squeezeReduced(keep, reduced)
	}
	return out
}

// Mean mittelt ueber die angegebenen Achsen
func Mean(t *Tensor, axes []int, keepdim bool) *Tensor {
	s := Sum(t, axes, keepdim)
	n := len(t.data) / max(len(s.data), 1)
	return Scale(s, 1/float32(n))
}

// Var berechnet die Varianz entlang einer Achse.
// unbiased=false teilt durch N (Populationsvarianz), sonst durch N-1.
func Var(t *Tensor, axis int, unbiased bool) *Tensor {
	axis = t.axis(axis)
	n := t.shape[axis]

	mean := Mean(t, []int{axis}, true)
	sq := Sum(Square(Sub(t, mean)), []int{axis}, false)

	div := float32(n)
	if unbiased {
		div = float32(n - 1)
	}
	return Scale(sq, 1/div)
}

// reduceShapes liefert die keepdim-Shape und eine Maske der reduzierten Achsen
func reduceShapes(t *Tensor, axes []int) ([]int, []bool) {
	reduced := make([]bool, len(t.shape))
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	}
	for _, a := range axes {
		reduced[t.axis(a)] = true
	}

	keep := slices.Clone(t.shape)
	for i := range keep {
		if reduced[i] {
			keep[i] = 1
		}
	}
	return keep, reduced
}

func squeezeReduced(keep []int, reduced []bool) []int {
	shape := make([]int, 0, len(keep))
	for i, d := range keep {
		if !reduced[i] {
			shape = append(shape, d)
		}
	}
	return shape
}
