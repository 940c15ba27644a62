// convert_stylegan2.go - Converter fuer StyleGAN2-Checkpoints
// Enthaelt: stylegan2Model (config.json, Umbenennung, Tensor-Abbildung)
//
// Eingabe ist entweder ein Trainings-Checkpoint mit den Eintraegen
// g_ema, g und d oder ein einzelnes state_dict von Generator bzw.
// Discriminator.
package convert

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/model/models/stylegan"
)

type stylegan2Model struct {
	ModelParameters
	Size              uint32    `json:"size"`
	ChannelMultiplier uint32    `json:"channel_multiplier"`
	ChannelMax        uint32    `json:"channel_max"`
	WDim              uint32    `json:"w_dim"`
	Latent            uint32    `json:"latent"`
	NMLP              uint32    `json:"n_mlp"`
	LRMLP             float32   `json:"lr_mlp"`
	EmbeddingDim      uint32    `json:"embedding_dim"`
	BlurKernel        []float32 `json:"blur_kernel"`

	hasGenerator, hasDiscriminator bool
}

var _ ModelConverter = (*stylegan2Model)(nil)

func (m *stylegan2Model) config() stylegan.Config {
	c := stylegan.DefaultConfig(int(m.Size))
	c.ChannelMultiplier = int(cmp.Or(m.ChannelMultiplier, uint32(c.ChannelMultiplier)))
	c.ChannelMax = int(cmp.Or(m.ChannelMax, uint32(c.ChannelMax)))
	c.WDim = int(cmp.Or(m.WDim, m.Latent, uint32(c.WDim)))
	c.NMLP = int(cmp.Or(m.NMLP, uint32(c.NMLP)))
	c.LRMLP = cmp.Or(m.LRMLP, c.LRMLP)
	c.EmbeddingDim = int(cmp.Or(m.EmbeddingDim, uint32(c.EmbeddingDim)))
	if len(m.BlurKernel) > 0 {
		c.BlurKernel = m.BlurKernel
	}
	c.HasGenerator = m.hasGenerator
	c.HasDiscriminator = m.hasDiscriminator
	return c
}

func (m *stylegan2Model) KV() (fsggml.KV, error) {
	c := m.config()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	kv := c.KV()
	if m.Name != "" {
		kv["general.name"] = m.Name
	}
	return kv, nil
}

func (m *stylegan2Model) Replacements() []Replacement {
	return []Replacement{
		// Checkpoint-Eintraege
		{Pattern: `^g_ema\.`, Repl: "gen."},
		{Pattern: `^g\.`, Repl: "gen."},
		{Pattern: `^d\.`, Repl: "disc."},
		{Pattern: `^latent_avg$`, Repl: "gen.mean_latent"},

		// Generator
		{Pattern: `^gen\.style\.(\d+)\.`, Func: shiftIndex("gen.mapping.", -1, 1, ".")},
		{Pattern: `\.conv\.modulation\.`, Repl: ".conv.mod."},
		{Pattern: `^gen\.noises\.noise_(\d+)$`, Repl: "gen.noises.$1"},

		// Discriminator: convs.0 ist die Eingangs-Schicht, convs.N die ResBlocks
		{Pattern: `^disc\.convs\.0\.0\.`, Repl: "disc.input.conv."},
		{Pattern: `^disc\.convs\.0\.1\.`, Repl: "disc.input.activate."},
		{Pattern: `^disc\.convs\.(\d+)\.(?=conv1|conv2|skip)`, Func: shiftIndex("disc.blocks.", -1, 1, ".")},
		{Pattern: `(?<=^disc\.(?:.*\.)?)(conv1|final_conv)\.0\.`, Repl: "$1.conv."},
		{Pattern: `(?<=^disc\.(?:.*\.)?)(conv1|final_conv)\.1\.`, Repl: "$1.activate."},
		{Pattern: `(?<=^disc\.(?:.*\.)?)conv2\.1\.`, Repl: "conv2.conv."},
		{Pattern: `(?<=^disc\.(?:.*\.)?)conv2\.2\.`, Repl: "conv2.activate."},
		{Pattern: `(?<=^disc\.(?:.*\.)?)skip\.1\.`, Repl: "skip.conv."},
		{Pattern: `^disc\.COND_DNET\.`, Repl: "disc.cond_logits."},
		{Pattern: `\.jointConv\.0\.(?:module\.)?`, Repl: ".joint_conv."},
		{Pattern: `\.outlogits\.0\.`, Repl: ".out."},
		{Pattern: `\.weight_orig$`, Repl: ".weight_bar"},
	}
}

// Tensors verwirft Filter-Buffer und Optimizer-Zustaende, bevorzugt g_ema
// vor g und bringt die modulierten Gewichte auf 4 Dimensionen
func (m *stylegan2Model) Tensors(ts []Tensor, ft fsggml.FileType) ([]*fsggml.Tensor, error) {
	ts = slices.DeleteFunc(ts, func(t Tensor) bool {
		return strings.HasSuffix(t.Name(), ".kernel")
	})

	hasEMA := slices.ContainsFunc(ts, func(t Tensor) bool { return strings.HasPrefix(t.Name(), "g_ema.") })
	nested := slices.ContainsFunc(ts, func(t Tensor) bool {
		name := t.Name()
		return strings.HasPrefix(name, "g_ema.") || strings.HasPrefix(name, "g.") || strings.HasPrefix(name, "d.")
	})

	if !nested {
		// einzelnes state_dict: der Generator hat ein Mapping-Netz
		prefix := "disc."
		if slices.ContainsFunc(ts, func(t Tensor) bool {
			return strings.HasPrefix(t.Name(), "mapping.") || strings.HasPrefix(t.Name(), "style.")
		}) {
			prefix = "gen."
		}
		for _, t := range ts {
			t.SetName(prefix + t.Name())
		}
	} else if hasEMA {
		ts = slices.DeleteFunc(ts, func(t Tensor) bool { return strings.HasPrefix(t.Name(), "g.") })
	}

	if err := renameTensors(ts, m.Replacements()); err != nil {
		return nil, err
	}

	var out []*fsggml.Tensor
	for _, t := range ts {
		name := t.Name()
		ds := dims(t)

		switch {
		case strings.HasPrefix(name, "gen."):
			m.hasGenerator = true
		case strings.HasPrefix(name, "disc."):
			m.hasDiscriminator = true
		default:
			slog.Debug("skipping tensor", "name", name)
			continue
		}

		switch {
		case strings.HasSuffix(name, ".conv.weight") && strings.HasPrefix(name, "gen.") && len(ds) == 5:
			if ds[0] != 1 {
				return nil, fmt.Errorf("%s: expected leading dimension 1, got %v", name, ds)
			}
			ds = ds[1:]
		case name == "gen.mean_latent" && len(ds) == 1:
			ds = []int{1, ds[0]}
		}

		out = append(out, newGGMLTensor(t, ft, ds...))
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no stylegan2 tensors found")
	}
	return out, nil
}
