// MODUL: imageproc
// ZWECK: Umwandlung zwischen Bildern und NCHW-Tensoren in [-1, 1]
// INPUT: image.Image (PNG, JPEG, BMP, TIFF, WebP) oder Tensor (B, 3, H, W)
// OUTPUT: Tensor bzw. *image.RGBA, PNG-Bytes, Bild-Raster
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern), x/image/{bmp,tiff,webp} Decoder
// HINWEISE: Alpha wird auf weissen Hintergrund gelegt, Werte ausserhalb [-1, 1] werden abgeschnitten

package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/7blacky7/stylegan/ml"
)

// ErrNoImages wird bei leerer Eingabe zurueckgegeben
var ErrNoImages = errors.New("no images")

// Decode liest ein Bild in einem der registrierten Formate
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Composite legt das Bild auf einen weissen Hintergrund
func Composite(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}

// Resize skaliert auf size x size (CatmullRom). Bilder in der
// Zielgroesse werden nur auf RGBA gebracht.
func Resize(img image.Image, size int) *image.RGBA {
	src := Composite(img)
	if src.Bounds().Dx() == size && src.Bounds().Dy() == size {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// ToTensor wandelt Bilder in einen Tensor (B, 3, size, size) mit Werten in [-1, 1]
func ToTensor(imgs []image.Image, size int) (*ml.Tensor, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}
	if size < 1 {
		return nil, fmt.Errorf("invalid size %d", size)
	}

	plane := size * size
	data := make([]float32, len(imgs)*3*plane)
	for b, img := range imgs {
		rgba := Resize(img, size)
		base := b * 3 * plane
		for y := range size {
			for x := range size {
				i := rgba.PixOffset(x, y)
				for c := range 3 {
					data[base+c*plane+y*size+x] = float32(rgba.Pix[i+c])/127.5 - 1
				}
			}
		}
	}

	return ml.New(data, len(imgs), 3, size, size), nil
}

// ToImages wandelt einen Tensor (B, 3, H, W) in [-1, 1] in RGBA-Bilder
func ToImages(t *ml.Tensor) ([]*image.RGBA, error) {
	if t == nil || t.NumDims() != 4 || t.Dim(1) != 3 {
		return nil, fmt.Errorf("%w: expected (B, 3, H, W) tensor", ml.ErrShape)
	}

	batch, h, w := t.Dim(0), t.Dim(2), t.Dim(3)
	plane := h * w
	data := t.Data()

	imgs := make([]*image.RGBA, batch)
	for b := range batch {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		base := b * 3 * plane
		for y := range h {
			for x := range w {
				i := img.PixOffset(x, y)
				for c := range 3 {
					img.Pix[i+c] = toUint8(data[base+c*plane+y*w+x])
				}
				img.Pix[i+3] = 255
			}
		}
		imgs[b] = img
	}
	return imgs, nil
}

// toUint8 bildet [-1, 1] auf [0, 255] ab
func toUint8(v float32) uint8 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	f := (float64(v)+1)*127.5 + 0.5
	return uint8(max(0, min(255, math.Floor(f))))
}

// EncodePNG kodiert ein Bild als PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Grid legt Bilder gleicher Groesse in Zeilen zu je nrow mit padding
// Pixeln Abstand auf schwarzem Grund ab
func Grid(imgs []*image.RGBA, nrow, padding int) (*image.RGBA, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}

	nrow = max(1, min(nrow, len(imgs)))
	rows := (len(imgs) + nrow - 1) / nrow
	w, h := imgs[0].Bounds().Dx(), imgs[0].Bounds().Dy()

	grid := image.NewRGBA(image.Rect(0, 0, nrow*(w+padding)+padding, rows*(h+padding)+padding))
	draw.Draw(grid, grid.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	for i, img := range imgs {
		if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
			return nil, fmt.Errorf("image %d is %v, expected %dx%d", i, img.Bounds().Size(), w, h)
		}

		x := padding + (i%nrow)*(w+padding)
		y := padding + (i/nrow)*(h+padding)
		draw.Draw(grid, image.Rect(x, y, x+w, y+h), img, img.Bounds().Min, draw.Src)
	}
	return grid, nil
}
