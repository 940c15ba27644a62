// Modul: dnet256.go
// Beschreibung: Spektral normierter Bild-Encoder fuer 256x256 mit zwei Logit-Koepfen
// Hauptstrukturen:
//   - DNet256Config: df_dim, embedding_dim, unconditional
//   - DNet256: Encoder /64 auf (8·ndf, 4, 4), unkonditionaler und konditionaler Kopf

package stylegan

import (
	"fmt"

	"github.com/7blacky7/stylegan/fs"
	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/ml/nn"
)

// DNet256Architecture ist der Name in general.architecture
const DNet256Architecture = "dnet256"

// DNet256Size ist die feste Eingabe-Aufloesung
const DNet256Size = 256

// DNet256Config enthaelt die Hyperparameter des Encoders
type DNet256Config struct {
	DFDim        int
	EmbeddingDim int

	// Unconditional erzeugt zusaetzlich den unkonditionalen Kopf
	Unconditional bool
}

func dnet256ConfigFromKV(c fs.Config) (DNet256Config, error) {
	cfg := DNet256Config{
		DFDim:         int(c.Uint("df_dim", 64)),
		EmbeddingDim:  int(c.Uint("embedding_dim", 256)),
		Unconditional: c.Bool("unconditional", true),
	}
	return cfg, cfg.Validate()
}

// Validate prueft die Hyperparameter
func (c DNet256Config) Validate() error {
	if c.DFDim < 1 || c.EmbeddingDim < 1 {
		return fmt.Errorf("%w: df_dim %d, embedding_dim %d", ErrInvalidConfig, c.DFDim, c.EmbeddingDim)
	}
	return nil
}

// KV gibt die Config als vollstaendige GGUF-Keys zurueck
func (c DNet256Config) KV() fsggml.KV {
	return fsggml.KV{
		"general.architecture":                DNet256Architecture,
		DNet256Architecture + ".df_dim":        uint32(c.DFDim),
		DNet256Architecture + ".embedding_dim": uint32(c.EmbeddingDim),
		DNet256Architecture + ".unconditional": c.Unconditional,
	}
}

// DNet256 kodiert Bilder (B, 3, 256, 256) auf (B, 8·ndf, 4, 4).
// Beide Koepfe arbeiten auf 8·ndf Kanaelen, der Breite der Encoder-Ausgabe.
type DNet256 struct {
	S16    []*nn.SpectralNormConv2d `gguf:"img_code_s16"`
	S32    *nn.SpectralNormConv2d   `gguf:"img_code_s32"`
	S64    *nn.SpectralNormConv2d   `gguf:"img_code_s64"`
	S64x1  *nn.SpectralNormConv2d   `gguf:"img_code_s64_1"`
	S64x2  *nn.SpectralNormConv2d   `gguf:"img_code_s64_2"`
	Uncond *CondLogits              `gguf:"uncond_logits"`
	Cond   *CondLogits              `gguf:"cond_logits"`

	config DNet256Config
}

// NewDNet256 baut den Encoder fuer c
func NewDNet256(c DNet256Config) *DNet256 {
	ndf := c.DFDim
	down := nn.ConvOptions{Stride: 2, Padding: 1}
	same := nn.ConvOptions{Stride: 1, Padding: 1}

	d := &DNet256{
		S16: []*nn.SpectralNormConv2d{
			nn.NewSpectralNormConv2d(3, ndf, 4, down),
			nn.NewSpectralNormConv2d(ndf, ndf*2, 4, down),
			nn.NewSpectralNormConv2d(ndf*2, ndf*4, 4, down),
			nn.NewSpectralNormConv2d(ndf*4, ndf*8, 4, down),
		},
		S32:    nn.NewSpectralNormConv2d(ndf*8, ndf*16, 4, down),
		S64:    nn.NewSpectralNormConv2d(ndf*16, ndf*32, 4, down),
		S64x1:  nn.NewSpectralNormConv2d(ndf*32, ndf*16, 3, same),
		S64x2:  nn.NewSpectralNormConv2d(ndf*16, ndf*8, 3, same),
		Cond:   NewCondLogits(ndf*8, c.EmbeddingDim, true),
		config: c,
	}
	if c.Unconditional {
		d.Uncond = NewCondLogits(ndf*8, c.EmbeddingDim, false)
	}
	return d
}

// Encode gibt die 4x4-Features zurueck
func (d *DNet256) Encode(x *ml.Tensor) (h *ml.Tensor, err error) {
	defer ml.Catch(&err)
	return d.encode(x), nil
}

func (d *DNet256) encode(x *ml.Tensor) *ml.Tensor {
	if x.NumDims() != 4 || x.Dim(1) != 3 || x.Dim(2) != DNet256Size || x.Dim(3) != DNet256Size {
		ml.Errorf("dnet256", "image must be (B, 3, %d, %d), got %v", DNet256Size, DNet256Size, x.Shape())
	}

	for _, l := range d.S16 {
		x = ml.LeakyReLU(l.Forward(x), 0.2)
	}
	for _, l := range []*nn.SpectralNormConv2d{d.S32, d.S64, d.S64x1, d.S64x2} {
		x = ml.LeakyReLU(l.Forward(x), 0.2)
	}
	return x
}

// Forward gibt den unkonditionalen Score (B, nil ohne Kopf) und die
// konditionalen Logits (B, nil ohne cCode) zurueck
func (d *DNet256) Forward(x, cCode *ml.Tensor) (score, condLogits *ml.Tensor, err error) {
	defer ml.Catch(&err)

	h := d.encode(x)
	if d.Uncond != nil {
		score = d.Uncond.Forward(h, nil)
	}
	if cCode != nil {
		condLogits = d.Cond.Forward(h, cCode)
	}
	return score, condLogits, nil
}
