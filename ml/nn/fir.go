// fir.go - FIR-Filter fuer Anti-Aliasing und Resampling
//
// Enthaelt:
// - MakeKernel: 2-D Kernel aus einem 1-D Kernel (Aussenprodukt, Summe 1)
// - Blur: Filter ohne Resampling, optional mit Upsample-Gain
// - Upsample, Downsample: Resampling um einen ganzzahligen Faktor
package nn

import "github.com/7blacky7/stylegan/ml"

// DefaultBlurKernel sind die Standard-Taps [1, 3, 3, 1]
var DefaultBlurKernel = []float32{1, 3, 3, 1}

// MakeKernel bildet das normierte Aussenprodukt k·kᵀ
func MakeKernel(k []float32) *ml.Tensor {
	n := len(k)
	data := make([]float32, n*n)

	var sum float32
	for i := range n {
		for j := range n {
			data[i*n+j] = k[i] * k[j]
			sum += data[i*n+j]
		}
	}
	for i := range data {
		data[i] /= sum
	}
	return ml.New(data, n, n)
}

// Blur filtert ohne Resampling
type Blur struct {
	kernel     *ml.Tensor
	pad0, pad1 int
}

// NewBlur erstellt einen Blur mit festen Pads. Bei upsampleFactor > 1
// wird der Kernel mit factor² skaliert.
func NewBlur(k []float32, pad0, pad1, upsampleFactor int) *Blur {
	kernel := MakeKernel(k)
	if upsampleFactor > 1 {
		kernel = ml.Scale(kernel, float32(upsampleFactor*upsampleFactor))
	}
	return &Blur{kernel: kernel, pad0: pad0, pad1: pad1}
}

func (b *Blur) Forward(x *ml.Tensor) *ml.Tensor {
	return ml.UpFirDn2D(x, b.kernel, 1, 1, b.pad0, b.pad1)
}

// Upsample vergroessert um factor
type Upsample struct {
	kernel     *ml.Tensor
	factor     int
	pad0, pad1 int
}

func NewUpsample(k []float32, factor int) *Upsample {
	p := len(k) - factor
	return &Upsample{
		kernel: ml.Scale(MakeKernel(k), float32(factor*factor)),
		factor: factor,
		pad0:   floorDiv(p+1, 2) + factor - 1,
		pad1:   floorDiv(p, 2),
	}
}

func (u *Upsample) Forward(x *ml.Tensor) *ml.Tensor {
	return ml.UpFirDn2D(x, u.kernel, u.factor, 1, u.pad0, u.pad1)
}

// Downsample verkleinert um factor
type Downsample struct {
	kernel     *ml.Tensor
	factor     int
	pad0, pad1 int
}

func NewDownsample(k []float32, factor int) *Downsample {
	p := len(k) - factor
	return &Downsample{
		kernel: MakeKernel(k),
		factor: factor,
		pad0:   floorDiv(p+1, 2),
		pad1:   floorDiv(p, 2),
	}
}

func (d *Downsample) Forward(x *ml.Tensor) *ml.Tensor {
	return ml.UpFirDn2D(x, d.kernel, 1, d.factor, d.pad0, d.pad1)
}

// floorDiv rundet wie Pythons // auch fuer negative Werte ab
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
