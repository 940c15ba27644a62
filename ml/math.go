// math.go - Elementweise Operationen
//
// Enthaelt:
// - Add, Sub, Mul, Div: Binaere Operationen mit numpy-Broadcasting
// - Scale, AddScalar, Square, Sqrt, Rsqrt: Unaere Operationen
// - Sigmoid, LeakyReLU, GLU: Aktivierungen
// - Lerp: Lineare Interpolation (Truncation-Trick)
package ml

import (
	"math"
	"slices"
)

// Add addiert zwei Tensoren elementweise
func Add(a, b *Tensor) *Tensor {
	return binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub subtrahiert b von a elementweise
func Sub(a, b *Tensor) *Tensor {
	return binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul multipliziert zwei Tensoren elementweise
func Mul(a, b *Tensor) *Tensor {
	return binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div dividiert a durch b elementweise
func Div(a, b *Tensor) *Tensor {
	return binary("div", a, b, func(x, y float32) float32 { return x / y })
}

// Scale multipliziert alle Werte mit s
func Scale(t *Tensor, s float32) *Tensor {
	return unary(t, func(x float32) float32 { return x * s })
}

// AddScalar addiert s zu allen Werten
func AddScalar(t *Tensor, s float32) *Tensor {
	return unary(t, func(x float32) float32 { return x + s })
}

// Square quadriert elementweise
func Square(t *Tensor) *Tensor {
	return unary(t, func(x float32) float32 { return x * x })
}

// Sqrt zieht elementweise die Wurzel
func Sqrt(t *Tensor) *Tensor {
	return unary(t, func(x float32) float32 { return float32(math.Sqrt(float64(x))) })
}

// Rsqrt berechnet 1/sqrt(x + eps) elementweise
func Rsqrt(t *Tensor, eps float32) *Tensor {
	return unary(t, func(x float32) float32 { return float32(1 / math.Sqrt(float64(x+eps))) })
}

// Sigmoid berechnet 1/(1+exp(-x)) elementweise
func Sigmoid(t *Tensor) *Tensor {
	return unary(t, func(x float32) float32 { return float32(1 / (1 + math.Exp(-float64(x)))) })
}

// LeakyReLU laesst positive Werte durch und skaliert negative mit slope
func LeakyReLU(t *Tensor, slope float32) *Tensor {
	return unary(t, func(x float32) float32 {
		if x < 0 {
			return x * slope
		}
		return x
	})
}

// GLU teilt Achse 1 in zwei Haelften a, b und liefert a * sigmoid(b)
func GLU(t *Tensor) *Tensor {
	if t.NumDims() < 2 {
		panic(shapeErrorf("glu", "expected at least 2 dimensions, got %v", t.shape))
	}
	nc := t.shape[1]
	if nc%2 != 0 {
		panic(shapeErrorf("glu", "channels dont divide 2: %d", nc))
	}
	return Mul(Narrow(t, 1, 0, nc/2), Sigmoid(Narrow(t, 1, nc/2, nc/2)))
}

// Lerp berechnet a + w*(b - a)
func Lerp(a, b *Tensor, w float32) *Tensor {
	return Add(a, Scale(Sub(b, a), w))
}

// =============================================================================
// Interne Helfer
// =============================================================================

func unary(t *Tensor, fn func(float32) float32) *Tensor {
	out := &Tensor{shape: slices.Clone(t.shape), data: make([]float32, len(t.data))}
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// broadcastShape berechnet die Ergebnis-Shape nach numpy-Regeln
func broadcastShape(op string, a, b []int) []int {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := range n {
		da, db := 1, 1
		if j := i - (n - len(a)); j >= 0 {
			da = a[j]
		}
		if j := i - (n - len(b)); j >= 0 {
			db = b[j]
		}

		switch {
		case da == db, db == 1:
			out[i] = da
		case da == 1:
			out[i] = db
		default:
			panic(shapeErrorf(op, "cannot broadcast %v with %v", a, b))
		}
	}
	return out
}

// broadcastStrides liefert Strides von shape innerhalb von out; gebroadcastete Achsen haben Stride 0
func broadcastStrides(shape, out []int) []int {
	s := strides(shape)
	bs := make([]int, len(out))
	offset := len(out) - len(shape)
	for i := range shape {
		if shape[i] != 1 {
			bs[offset+i] = s[i]
		}
	}
	return bs
}

func binary(op string, a, b *Tensor, fn func(x, y float32) float32) *Tensor {
	if slices.Equal(a.shape, b.shape) {
		out := &Tensor{shape: slices.Clone(a.shape), data: make([]float32, len(a.data))}
		for i := range out.data {
			out.data[i] = fn(a.data[i], b.data[i])
		}
		return out
	}

	shape := broadcastShape(op, a.shape, b.shape)
	out := Zeros(shape...)
	if len(out.data) == 0 {
		return out
	}

	sa, sb := broadcastStrides(a.shape, shape), broadcastStrides(b.shape, shape)
	idx := make([]int, len(shape))
	var oa, ob int
	for i := range out.data {
		out.data[i] = fn(a.data[oa], b.data[ob])

		// Multi-Index inkrementieren, Offsets mitfuehren
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			oa += sa[d]
			ob += sb[d]
			if idx[d] < shape[d] {
				break
			}
			oa -= sa[d] * shape[d]
			ob -= sb[d] * shape[d]
			idx[d] = 0
		}
	}
	return out
}
