// Modul: model.go
// Beschreibung: Registrierte Architekturen "stylegan2" und "dnet256"
// Hauptstrukturen:
//   - Model: Generator und Discriminator eines StyleGAN2-Checkpoints
//   - DNet256Model: Spektral normierter 256x256-Discriminator
//   - New, NewDNet256Model: Konstruktoren fuer die Model-Registry

package stylegan

import (
	"cmp"
	"log/slog"
	"sync"
	"time"

	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/fs"
	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/model"
)

var (
	_ model.Generator     = (*Model)(nil)
	_ model.Discriminator = (*Model)(nil)
	_ model.Discriminator = (*DNet256Model)(nil)
)

// meanLatentSeed ist der feste Seed fuer die W-Mittelwert-Schaetzung,
// damit Truncation unabhaengig vom Anfrage-Seed ist
const meanLatentSeed = 0x5eed

// Model repraesentiert einen StyleGAN2-Checkpoint
type Model struct {
	Generator     *Generator     `gguf:"gen"`
	Discriminator *Discriminator `gguf:"disc"`

	config Config

	mu         sync.Mutex
	meanLatent map[int]*ml.Tensor
}

// New erstellt ein StyleGAN2-Model aus den Checkpoint-Metadaten
func New(c fs.Config) (model.Model, error) {
	cfg, err := configFromKV(c)
	if err != nil {
		return nil, err
	}
	return NewModel(cfg), nil
}

// NewModel baut Generator und Discriminator gemaess HasGenerator/HasDiscriminator
func NewModel(c Config) *Model {
	m := &Model{config: c, meanLatent: make(map[int]*ml.Tensor)}
	if c.HasGenerator {
		m.Generator = NewGenerator(c)
	}
	if c.HasDiscriminator {
		m.Discriminator = NewDiscriminator(c)
	}
	return m
}

// KV gibt die Hyperparameter zurueck
func (m *Model) KV() fsggml.KV {
	return m.config.KV()
}

// Config gibt die Hyperparameter zurueck
func (m *Model) Config() Config {
	return m.config
}

// Generate zieht Latents aus opts.Seed (falls nicht vorgegeben) und erzeugt Bilder
func (m *Model) Generate(opts model.GenerateOptions) (*model.GenerateResult, error) {
	if m.Generator == nil {
		return nil, model.ErrNoGenerator
	}

	rng := ml.NewRNG(opts.Seed)

	input := opts.Latents
	if input == nil {
		input = ml.RandN(rng, max(opts.Batch, 1), m.config.WDim)
	}

	gopts := Options{
		InputIsLatent: opts.InputIsLatent,
		FixedNoise:    opts.FixedNoise,
		RNG:           rng,
		ReturnLatents: opts.ReturnLatents,
	}

	if opts.Truncation > 0 && opts.Truncation < 1 {
		avg, err := m.MeanLatent(opts.TruncationSamples)
		if err != nil {
			return nil, err
		}
		gopts.Truncation, gopts.TruncationLatent = opts.Truncation, avg
	}

	out, err := m.Generator.Forward(input, gopts)
	if err != nil {
		return nil, err
	}

	return &model.GenerateResult{Images: out.Image, Latents: out.Latents}, nil
}

// MeanLatent gibt den gespeicherten W-Mittelwert zurueck oder schaetzt ihn
// aus samples Latents (Default STYLEGAN_TRUNCATION_SAMPLES). Schaetzungen
// werden je Stichprobengroesse zwischengespeichert.
func (m *Model) MeanLatent(samples int) (*ml.Tensor, error) {
	if m.Generator == nil {
		return nil, model.ErrNoGenerator
	}

	if m.Generator.MeanLatent != nil {
		return m.Generator.MeanLatent, nil
	}

	samples = cmp.Or(samples, int(envconfig.TruncationSamples()))

	m.mu.Lock()
	defer m.mu.Unlock()

	if avg, ok := m.meanLatent[samples]; ok {
		return avg, nil
	}

	start := time.Now()
	avg, err := m.Generator.EstimateMeanLatent(samples, ml.NewRNG(meanLatentSeed))
	if err != nil {
		return nil, err
	}
	slog.Debug("estimated mean latent", "samples", samples, "duration", time.Since(start))

	m.meanLatent[samples] = avg
	return avg, nil
}

// ImageSize ist die Aufloesung von Generator und Discriminator
func (m *Model) ImageSize() int {
	return m.config.Size
}

// Discriminate bewertet images (B, 3, Size, Size); cond (B, embedding_dim) ist optional
func (m *Model) Discriminate(images, cond *ml.Tensor) (*model.DiscriminateResult, error) {
	if m.Discriminator == nil {
		return nil, model.ErrNoDiscriminator
	}

	score, condLogits, err := m.Discriminator.Forward(images, cond)
	if err != nil {
		return nil, err
	}
	return &model.DiscriminateResult{Scores: score, CondLogits: condLogits}, nil
}

// DNet256Model repraesentiert einen dnet256-Checkpoint
type DNet256Model struct {
	Net *DNet256 `gguf:"disc"`

	config DNet256Config
}

// NewDNet256Model erstellt das Model aus den Checkpoint-Metadaten
func NewDNet256Model(c fs.Config) (model.Model, error) {
	cfg, err := dnet256ConfigFromKV(c)
	if err != nil {
		return nil, err
	}
	return &DNet256Model{Net: NewDNet256(cfg), config: cfg}, nil
}

func (m *DNet256Model) KV() fsggml.KV {
	return m.config.KV()
}

func (m *DNet256Model) ImageSize() int {
	return DNet256Size
}

// Discriminate: Scores ist nil, wenn der Checkpoint keinen unkonditionalen Kopf hat
func (m *DNet256Model) Discriminate(images, cond *ml.Tensor) (*model.DiscriminateResult, error) {
	score, condLogits, err := m.Net.Forward(images, cond)
	if err != nil {
		return nil, err
	}
	return &model.DiscriminateResult{Scores: score, CondLogits: condLogits}, nil
}

func init() {
	model.Register(Architecture, New)
	model.Register(DNet256Architecture, NewDNet256Model)
}
