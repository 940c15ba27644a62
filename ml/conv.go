// conv.go - 2D-Faltungen (NCHW) via im2col + GEMM
//
// Enthaelt:
// - ConvOptions: Stride, Padding, Groups
// - Conv2D: Gruppierte Kreuzkorrelation wie torch.nn.functional.conv2d
// - ConvTranspose2D: Gruppierte transponierte Faltung wie conv_transpose2d
package ml

// ConvOptions beschreibt Stride, symmetrisches Zero-Padding und Gruppen.
// Nullwerte bedeuten Stride 1, kein Padding, eine Gruppe.
type ConvOptions struct {
	Stride  int
	Padding int
	Groups  int
}

func (o ConvOptions) normalize() ConvOptions {
	o.Stride = max(o.Stride, 1)
	o.Groups = max(o.Groups, 1)
	return o
}

// colsBudget begrenzt die Groesse eines im2col-Puffers (in Elementen)
const colsBudget = 1 << 20

// Conv2D faltet x (N, C, H, W) mit w (O, C/groups, kh, kw)
func Conv2D(x, w *Tensor, opts ConvOptions) *Tensor {
	opts = opts.normalize()
	if x.NumDims() != 4 || w.NumDims() != 4 {
		panic(shapeErrorf("conv2d", "expected 4-D input and weight, got %v and %v", x.shape, w.shape))
	}

	n, c, h, wd := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	o, cg, kh, kw := w.shape[0], w.shape[1], w.shape[2], w.shape[3]
	g := opts.Groups
	if c%g != 0 || o%g != 0 || cg != c/g {
		panic(shapeErrorf("conv2d", "input %v incompatible with weight %v and %d groups", x.shape, w.shape, g))
	}

	s, p := opts.Stride, opts.Padding
	hout := (h+2*p-kh)/s + 1
	wout := (wd+2*p-kw)/s + 1
	if h+2*p < kh || wd+2*p < kw {
		panic(shapeErrorf("conv2d", "kernel %dx%d larger than padded input %v", kh, kw, x.shape))
	}

	og := o / g
	k := cg * kh * kw
	rows := max(1, min(hout, colsBudget/max(k*wout, 1)))
	chunks := (hout + rows - 1) / rows

	out := Zeros(n, o, hout, wout)
	parallelFor(n*g*chunks, func(job int) {
		b, rest := job/(g*chunks), job%(g*chunks)
		gi, chunk := rest/chunks, rest%chunks

		oy0 := chunk * rows
		oy1 := min(oy0+rows, hout)
		ncols := (oy1 - oy0) * wout

		cols := make([]float32, k*ncols)
		for ci := range cg {
			plane := x.data[((b*c)+gi*cg+ci)*h*wd:][:h*wd]
			for ky := range kh {
				for kx := range kw {
					row := cols[((ci*kh+ky)*kw+kx)*ncols:][:ncols]
					for oy := oy0; oy < oy1; oy++ {
						iy := oy*s - p + ky
						if iy < 0 || iy >= h {
							continue
						}
						dst := row[(oy-oy0)*wout:][:wout]
						for ox := range wout {
							if ix := ox*s - p + kx; ix >= 0 && ix < wd {
								dst[ox] = plane[iy*wd+ix]
							}
						}
					}
				}
			}
		}

		weight := w.data[gi*og*k:][:og*k]
		dst := out.data[(b*o+gi*og)*hout*wout+oy0*wout:]
		gemm(false, false, og, ncols, k, weight, cols, dst, hout*wout)
	})

	return out
}

// ConvTranspose2D berechnet die transponierte Faltung von x (N, C, H, W)
// mit w (C, O/groups, kh, kw). Ausgabegroesse (H-1)*stride - 2*padding + kh.
func ConvTranspose2D(x, w *Tensor, opts ConvOptions) *Tensor {
	opts = opts.normalize()
	if x.NumDims() != 4 || w.NumDims() != 4 {
		panic(shapeErrorf("conv_transpose2d", "expected 4-D input and weight, got %v and %v", x.shape, w.shape))
	}

	n, c, h, wd := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	og, kh, kw := w.shape[1], w.shape[2], w.shape[3]
	g := opts.Groups
	if w.shape[0] != c || c%g != 0 {
		panic(shapeErrorf("conv_transpose2d", "input %v incompatible with weight %v and %d groups", x.shape, w.shape, g))
	}

	s, p := opts.Stride, opts.Padding
	hout := (h-1)*s - 2*p + kh
	wout := (wd-1)*s - 2*p + kw
	if hout <= 0 || wout <= 0 {
		panic(shapeErrorf("conv_transpose2d", "empty output for input %v, weight %v", x.shape, w.shape))
	}

	cg := c / g
	o := og * g
	k := og * kh * kw

	out := Zeros(n, o, hout, wout)
	parallelFor(n*g, func(job int) {
		b, gi := job/g, job%g

		input := x.data[(b*c+gi*cg)*h*wd:][:cg*h*wd]
		weight := w.data[gi*cg*k:][:cg*k]

		// cols (og*kh*kw × h*w) = weightᵀ · input
		cols := make([]float32, k*h*wd)
		gemm(true, false, k, h*wd, cg, weight, input, cols, h*wd)

		for oc := range og {
			plane := out.data[(b*o+gi*og+oc)*hout*wout:][:hout*wout]
			for ky := range kh {
				for kx := range kw {
					row := cols[((oc*kh+ky)*kw+kx)*h*wd:][:h*wd]
					for iy := range h {
						oy := iy*s - p + ky
						if oy < 0 || oy >= hout {
							continue
						}
						for ix := range wd {
							if ox := ix*s - p + kx; ox >= 0 && ox < wout {
								plane[oy*wout+ox] += row[iy*wd+ix]
							}
						}
					}
				}
			}
		}
	})

	return out
}

// ConvOutputSize berechnet die Ausgabegroesse einer Faltung entlang einer Achse
func ConvOutputSize(in, kernel int, opts ConvOptions) int {
	opts = opts.normalize()
	return (in+2*opts.Padding-kernel)/opts.Stride + 1
}
