// Modul: config.go
// Beschreibung: Hyperparameter fuer Generator und Discriminator
// Hauptstrukturen:
//   - Config: Aufloesung, Kanal-Tabelle, Mapping-Netz, Blur-Kernel
//   - configFromKV: Liest die Config aus den Checkpoint-Metadaten
//   - Channels: Kanal-Tabelle nach Aufloesung

package stylegan

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/7blacky7/stylegan/fs"
	fsggml "github.com/7blacky7/stylegan/fs/ggml"
)

// ErrInvalidConfig wird bei ungueltigen Hyperparametern zurueckgegeben
var ErrInvalidConfig = errors.New("invalid stylegan config")

const (
	// Architecture ist der Name in general.architecture
	Architecture = "stylegan2"

	maxSize = 1024
)

// Config enthaelt alle Hyperparameter eines StyleGAN2-Checkpoints
type Config struct {
	Size              int
	ChannelMultiplier int
	ChannelMax        int
	WDim              int
	NMLP              int
	LRMLP             float32
	EmbeddingDim      int
	BlurKernel        []float32

	// Generator und Discriminator koennen einzeln im Checkpoint fehlen
	HasGenerator     bool
	HasDiscriminator bool
}

// DefaultConfig gibt die Standardwerte fuer eine Aufloesung zurueck
func DefaultConfig(size int) Config {
	return Config{
		Size:              size,
		ChannelMultiplier: 2,
		ChannelMax:        0,
		WDim:              512,
		NMLP:              8,
		LRMLP:             0.01,
		EmbeddingDim:      256,
		BlurKernel:        []float32{1, 3, 3, 1},
		HasGenerator:      true,
		HasDiscriminator:  true,
	}
}

// configFromKV liest die Config, fehlende Keys bekommen die Standardwerte
func configFromKV(c fs.Config) (Config, error) {
	d := DefaultConfig(256)
	cfg := Config{
		Size:              int(c.Uint("size", uint32(d.Size))),
		ChannelMultiplier: int(c.Uint("channel_multiplier", uint32(d.ChannelMultiplier))),
		ChannelMax:        int(c.Uint("channel_max", uint32(d.ChannelMax))),
		WDim:              int(c.Uint("w_dim", uint32(d.WDim))),
		NMLP:              int(c.Uint("n_mlp", uint32(d.NMLP))),
		LRMLP:             c.Float("lr_mlp", d.LRMLP),
		EmbeddingDim:      int(c.Uint("embedding_dim", uint32(d.EmbeddingDim))),
		BlurKernel:        c.Floats("blur_kernel", d.BlurKernel),
		HasGenerator:      c.Bool("generator", true),
		HasDiscriminator:  c.Bool("discriminator", true),
	}

	return cfg, cfg.Validate()
}

// Validate prueft die Hyperparameter
func (c Config) Validate() error {
	switch {
	case c.Size < 4 || c.Size > maxSize || bits.OnesCount(uint(c.Size)) != 1:
		return fmt.Errorf("%w: size %d must be a power of 2 between 4 and %d", ErrInvalidConfig, c.Size, maxSize)
	case c.ChannelMultiplier < 1:
		return fmt.Errorf("%w: channel_multiplier %d", ErrInvalidConfig, c.ChannelMultiplier)
	case c.ChannelMax < 0:
		return fmt.Errorf("%w: channel_max %d", ErrInvalidConfig, c.ChannelMax)
	case c.WDim < 1 || c.NMLP < 0:
		return fmt.Errorf("%w: w_dim %d, n_mlp %d", ErrInvalidConfig, c.WDim, c.NMLP)
	case c.EmbeddingDim < 1:
		return fmt.Errorf("%w: embedding_dim %d", ErrInvalidConfig, c.EmbeddingDim)
	case len(c.BlurKernel) < 2:
		return fmt.Errorf("%w: blur kernel needs at least 2 taps", ErrInvalidConfig)
	case !c.HasGenerator && !c.HasDiscriminator:
		return fmt.Errorf("%w: neither generator nor discriminator", ErrInvalidConfig)
	}
	return nil
}

// KV gibt die Config als vollstaendige GGUF-Keys zurueck
func (c Config) KV() fsggml.KV {
	return fsggml.KV{
		"general.architecture":               Architecture,
		Architecture + ".size":               uint32(c.Size),
		Architecture + ".channel_multiplier": uint32(c.ChannelMultiplier),
		Architecture + ".channel_max":        uint32(c.ChannelMax),
		Architecture + ".w_dim":              uint32(c.WDim),
		Architecture + ".n_mlp":              uint32(c.NMLP),
		Architecture + ".lr_mlp":             c.LRMLP,
		Architecture + ".embedding_dim":      uint32(c.EmbeddingDim),
		Architecture + ".blur_kernel":        c.BlurKernel,
		Architecture + ".generator":          c.HasGenerator,
		Architecture + ".discriminator":      c.HasDiscriminator,
	}
}

// LogSize ist log2(Size)
func (c Config) LogSize() int {
	return bits.Len(uint(c.Size)) - 1
}

// NLatent ist die Anzahl der Styles pro Bild: 2·log2(R) − 2
func (c Config) NLatent() int {
	return 2*c.LogSize() - 2
}

// NumLayers ist die Anzahl der Rausch-Eingaenge: 2·(log2(R) − 2) + 1
func (c Config) NumLayers() int {
	return 2*(c.LogSize()-2) + 1
}

// Channels gibt die Kanalzahl fuer eine Aufloesung zurueck.
// Bis 32 sind es 512, ab 64 halbiert sich die Breite je Verdopplung
// (skaliert mit ChannelMultiplier). Ein ChannelMax > 0 begrenzt beide Faelle.
func (c Config) Channels(res int) int {
	ch := 512
	if res >= 64 {
		ch = 16384 / res * c.ChannelMultiplier
	}
	if c.ChannelMax > 0 {
		ch = min(ch, c.ChannelMax)
	}
	return max(ch, 1)
}
