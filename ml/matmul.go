// matmul.go - Matrixprodukte ueber gonum BLAS
// Enthaelt: MatMul, Linear, MatVec, gemm
package ml

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// MatMul berechnet a·b fuer 2-D Tensoren
func MatMul(a, b *Tensor) *Tensor {
	if a.NumDims() != 2 || b.NumDims() != 2 || a.shape[1] != b.shape[0] {
		panic(shapeErrorf("matmul", "cannot multiply %v by %v", a.shape, b.shape))
	}

	out := Zeros(a.shape[0], b.shape[1])
	gemm(false, false, a.shape[0], b.shape[1], a.shape[1], a.data, b.data, out.data, out.shape[1])
	return out
}

// Linear berechnet x·wᵀ mit x (B, in) und w (out, in)
func Linear(x, w *Tensor) *Tensor {
	if x.NumDims() != 2 || w.NumDims() != 2 || x.shape[1] != w.shape[1] {
		panic(shapeErrorf("linear", "input %v does not match weight %v", x.shape, w.shape))
	}

	out := Zeros(x.shape[0], w.shape[0])
	gemm(false, true, x.shape[0], w.shape[0], x.shape[1], x.data, w.data, out.data, out.shape[1])
	return out
}

// MatVec berechnet m·v (transpose=false) oder mᵀ·v (transpose=true)
func MatVec(m, v *Tensor, transpose bool) *Tensor {
	if m.NumDims() != 2 || v.NumDims() != 1 {
		panic(shapeErrorf("matvec", "cannot multiply %v by %v", m.shape, v.shape))
	}

	rows, cols := m.shape[0], m.shape[1]
	if transpose {
		rows, cols = cols, rows
	}
	if v.shape[0] != cols {
		panic(shapeErrorf("matvec", "cannot multiply %v by %v", m.shape, v.shape))
	}

	out := Zeros(rows)
	tr := blas.NoTrans
	if transpose {
		tr = blas.Trans
	}
	blas32.Gemv(tr, 1,
		blas32.General{Rows: m.shape[0], Cols: m.shape[1], Stride: m.shape[1], Data: m.data},
		blas32.Vector{N: cols, Inc: 1, Data: v.data},
		0,
		blas32.Vector{N: rows, Inc: 1, Data: out.data},
	)
	return out
}

// gemm berechnet c = op(a)·op(b) mit c als (m × n) Ausschnitt mit Stride ldc.
// a ist (m × k) bzw. (k × m) bei transA, b ist (k × n) bzw. (n × k) bei transB.
func gemm(transA, transB bool, m, n, k int, a, b, c []float32, ldc int) {
	if m == 0 || n == 0 || k == 0 {
		return
	}

	ta, ga := blas.NoTrans, blas32.General{Rows: m, Cols: k, Stride: k, Data: a}
	if transA {
		ta, ga = blas.Trans, blas32.General{Rows: k, Cols: m, Stride: m, Data: a}
	}

	tb, gb := blas.NoTrans, blas32.General{Rows: k, Cols: n, Stride: n, Data: b}
	if transB {
		tb, gb = blas.Trans, blas32.General{Rows: n, Cols: k, Stride: k, Data: b}
	}

	blas32.Gemm(ta, tb, 1, ga, gb, 0, blas32.General{Rows: m, Cols: n, Stride: ldc, Data: c})
}
