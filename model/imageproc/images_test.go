package imageproc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/stylegan/ml"
)

func TestRoundTrip(t *testing.T) {
	// Werte auf dem 8-Bit-Raster ueberleben die Umwandlung exakt
	data := make([]float32, 2*3*2*2)
	for i := range data {
		data[i] = float32(i*10)/127.5 - 1
	}
	in := ml.New(data, 2, 3, 2, 2)

	imgs, err := ToImages(in)
	require.NoError(t, err)
	require.Len(t, imgs, 2)

	out, err := ToTensor([]image.Image{imgs[0], imgs[1]}, 2)
	require.NoError(t, err)

	if diff := cmp.Diff(in.Shape(), out.Shape()); diff != "" {
		t.Fatalf("Shape (-erwartet +erhalten):\n%s", diff)
	}
	if diff := cmp.Diff(in.Data(), out.Data()); diff != "" {
		t.Errorf("Daten (-erwartet +erhalten):\n%s", diff)
	}
}

func TestToImagesClamp(t *testing.T) {
	imgs, err := ToImages(ml.New([]float32{-3, 0, 3}, 1, 3, 1, 1))
	require.NoError(t, err)

	got := imgs[0].RGBAAt(0, 0)
	if diff := cmp.Diff(color.RGBA{0, 128, 255, 255}, got); diff != "" {
		t.Errorf("Pixel (-erwartet +erhalten):\n%s", diff)
	}
}

func TestToImagesShape(t *testing.T) {
	_, err := ToImages(ml.Zeros(1, 4, 2, 2))
	if !errors.Is(err, ml.ErrShape) {
		t.Errorf("err = %v, erwartet ErrShape", err)
	}
}

func TestToTensorResizeAndAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 6, 3))
	for y := range 3 {
		for x := range 6 {
			src.Set(x, y, color.NRGBA{0, 0, 0, 0})
		}
	}

	got, err := ToTensor([]image.Image{src}, 4)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 4, 4}, got.Shape())

	// voll transparent ergibt weiss
	for _, v := range got.Data() {
		if v != 1 {
			t.Fatalf("Wert %v, erwartet 1", v)
		}
	}

	_, err = ToTensor(nil, 4)
	require.ErrorIs(t, err, ErrNoImages)
}

func TestEncodePNG(t *testing.T) {
	imgs, err := ToImages(ml.Full(0.5, 1, 3, 3, 3))
	require.NoError(t, err)

	b, err := EncodePNG(imgs[0])
	require.NoError(t, err)

	img, format, err := Decode(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, image.Pt(3, 3), img.Bounds().Size())
}

func TestGrid(t *testing.T) {
	imgs, err := ToImages(ml.Ones(5, 3, 4, 4))
	require.NoError(t, err)

	grid, err := Grid(imgs, 2, 2)
	require.NoError(t, err)

	// 2 Spalten, 3 Zeilen: 2·(4+2)+2 x 3·(4+2)+2
	require.Equal(t, image.Pt(14, 20), grid.Bounds().Size())
	require.Equal(t, color.RGBA{0, 0, 0, 255}, grid.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{255, 255, 255, 255}, grid.RGBAAt(2, 2))

	_, err = Grid(nil, 2, 2)
	require.ErrorIs(t, err, ErrNoImages)
}
