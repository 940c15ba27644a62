// shape.go - Shape-Operationen
//
// Enthaelt:
// - Permute/Transpose: Achsen umordnen (materialisiert)
// - Concat: Tensoren entlang einer Achse verbinden
// - Repeat: Kacheln wie torch.Tensor.repeat
// - Select, Narrow: Ausschnitte entlang einer Achse
// - Unsqueeze, Squeeze: Achsen der Groesse 1 einfuegen/entfernen
package ml

import (
	"slices"

	"github.com/pdevine/tensor"
)

// Permute ordnet die Achsen um und kopiert die Daten in die neue Reihenfolge
func Permute(t *Tensor, axes ...int) *Tensor {
	if len(axes) != len(t.shape) {
		panic(shapeErrorf("permute", "axes %v do not match %v", axes, t.shape))
	}

	seen := make([]bool, len(axes))
	identity := true
	shape := make([]int, len(axes))
	for i, a := range axes {
		if a < 0 || a >= len(axes) || seen[a] {
			panic(shapeErrorf("permute", "axes %v are not a permutation", axes))
		}
		seen[a] = true
		shape[i] = t.shape[a]
		identity = identity && a == i
	}

	if identity || len(t.data) <= 1 {
		return &Tensor{shape: shape, data: slices.Clone(t.data)}
	}

	n := tensor.New(tensor.WithShape(t.shape...), tensor.WithBacking(slices.Clone(t.data)))
	if err := n.T(axes...); err != nil {
		panic(shapeErrorf("permute", "%v", err))
	}
	if err := n.Transpose(); err != nil {
		panic(shapeErrorf("permute", "%v", err))
	}

	return &Tensor{shape: shape, data: n.Data().([]float32)}
}

// Transpose vertauscht zwei Achsen
func Transpose(t *Tensor, a, b int) *Tensor {
	a, b = t.axis(a), t.axis(b)
	axes := make([]int, len(t.shape))
	for i := range axes {
		axes[i] = i
	}
	axes[a], axes[b] = axes[b], axes[a]
	return Permute(t, axes...)
}

// Concat verbindet Tensoren entlang einer Achse
func Concat(axis int, ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic(shapeErrorf("concat", "no tensors"))
	}

	axis = ts[0].axis(axis)
	shape := slices.Clone(ts[0].shape)
	shape[axis] = 0
	for _, t := range ts {
		if len(t.shape) != len(shape) {
			panic(shapeErrorf("concat", "rank mismatch %v vs %v", ts[0].shape, t.shape))
		}
		for i := range shape {
			if i != axis && t.shape[i] != ts[0].shape[i] {
				panic(shapeErrorf("concat", "shape mismatch %v vs %v on axis %d", ts[0].shape, t.shape, i))
			}
		}
		shape[axis] += t.shape[axis]
	}

	outer := numel(shape[:axis])
	inner := numel(shape[axis+1:])

	out := Zeros(shape...)
	dst := 0
	for o := range outer {
		for _, t := range ts {
			block := t.shape[axis] * inner
			copy(out.data[dst:dst+block], t.data[o*block:(o+1)*block])
			dst += block
		}
	}
	return out
}

// Repeat kachelt den Tensor; reps darf mehr Achsen haben als der Tensor
func Repeat(t *Tensor, reps ...int) *Tensor {
	if len(reps) < len(t.shape) {
		panic(shapeErrorf("repeat", "reps %v shorter than shape %v", reps, t.shape))
	}

	src := make([]int, len(reps))
	for i := range src {
		src[i] = 1
	}
	copy(src[len(reps)-len(t.shape):], t.shape)

	shape := make([]int, len(reps))
	for i := range shape {
		shape[i] = src[i] * reps[i]
	}

	out := Zeros(shape...)
	if len(out.data) == 0 {
		return out
	}

	ss := strides(src)
	idx := make([]int, len(shape))
	for i := range out.data {
		o := 0
		for d := range idx {
			o += (idx[d] % src[d]) * ss[d]
		}
		out.data[i] = t.data[o]

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// Narrow schneidet n Eintraege ab start entlang einer Achse aus
func Narrow(t *Tensor, axis, start, n int) *Tensor {
	axis = t.axis(axis)
	if start < 0 || n < 0 || start+n > t.shape[axis] {
		panic(shapeErrorf("narrow", "range [%d, %d) out of bounds for axis %d of %v", start, start+n, axis, t.shape))
	}

	shape := slices.Clone(t.shape)
	shape[axis] = n

	outer := numel(t.shape[:axis])
	inner := numel(t.shape[axis+1:])

	out := Zeros(shape...)
	for o := range outer {
		src := t.data[(o*t.shape[axis]+start)*inner:]
		copy(out.data[o*n*inner:(o+1)*n*inner], src[:n*inner])
	}
	return out
}

// Select waehlt Index i entlang einer Achse und entfernt die Achse
func Select(t *Tensor, axis, i int) *Tensor {
	axis = t.axis(axis)
	out := Narrow(t, axis, i, 1)
	out.shape = slices.Delete(out.shape, axis, axis+1)
	return out
}

// Unsqueeze fuegt eine Achse der Groesse 1 ein
func Unsqueeze(t *Tensor, axis int) *Tensor {
	if axis < 0 {
		axis += len(t.shape) + 1
	}
	if axis < 0 || axis > len(t.shape) {
		panic(shapeErrorf("unsqueeze", "axis %d out of range for %v", axis, t.shape))
	}
	return &Tensor{shape: slices.Insert(slices.Clone(t.shape), axis, 1), data: t.data}
}

// Squeeze entfernt eine Achse der Groesse 1
func Squeeze(t *Tensor, axis int) *Tensor {
	axis = t.axis(axis)
	if t.shape[axis] != 1 {
		panic(shapeErrorf("squeeze", "axis %d of %v is not 1", axis, t.shape))
	}
	return &Tensor{shape: slices.Delete(slices.Clone(t.shape), axis, axis+1), data: t.data}
}
