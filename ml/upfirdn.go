// upfirdn.go - FIR-Resampling (Upsample, FIR-Filter, Downsample)
package ml

// UpFirDn2D fuegt up-1 Nullen zwischen die Pixel ein, polstert mit pad0/pad1
// (negative Werte beschneiden), faltet jede Ebene mit dem 2-D Kernel und behaelt
// jedes down-te Sample. Gleiche Pads fuer beide Achsen.
//
// Ausgabegroesse: (H*up + pad0 + pad1 - kh + down) / down
func UpFirDn2D(x, kernel *Tensor, up, down, pad0, pad1 int) *Tensor {
	if x.NumDims() != 4 || kernel.NumDims() != 2 {
		panic(shapeErrorf("upfirdn2d", "expected 4-D input and 2-D kernel, got %v and %v", x.shape, kernel.shape))
	}
	if up < 1 || down < 1 {
		panic(shapeErrorf("upfirdn2d", "invalid factors up=%d down=%d", up, down))
	}

	n, c, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	kh, kw := kernel.shape[0], kernel.shape[1]

	hout := floorDiv(h*up+pad0+pad1-kh+down, down)
	wout := floorDiv(w*up+pad0+pad1-kw+down, down)
	if hout <= 0 || wout <= 0 {
		panic(shapeErrorf("upfirdn2d", "empty output for input %v, kernel %v, pads (%d, %d)", x.shape, kernel.shape, pad0, pad1))
	}

	// Kernel spiegeln: echte Faltung statt Kreuzkorrelation
	flipped := make([]float32, kh*kw)
	for ky := range kh {
		for kx := range kw {
			flipped[ky*kw+kx] = kernel.data[(kh-1-ky)*kw+(kw-1-kx)]
		}
	}

	out := Zeros(n, c, hout, wout)
	parallelFor(n*c, func(plane int) {
		src := x.data[plane*h*w:][:h*w]
		dst := out.data[plane*hout*wout:][:hout*wout]

		for oy := range hout {
			for ox := range wout {
				var sum float32
				for ky := range kh {
					u := oy*down + ky - pad0
					if u < 0 || u >= h*up || u%up != 0 {
						continue
					}
					row := src[(u/up)*w:][:w]
					for kx := range kw {
						v := ox*down + kx - pad0
						if v < 0 || v >= w*up || v%up != 0 {
							continue
						}
						sum += row[v/up] * flipped[ky*kw+kx]
					}
				}
				dst[oy*wout+ox] = sum
			}
		}
	})

	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
