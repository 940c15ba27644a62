// convert_dnet256.go - Converter fuer den 256x256-Encoder mit Logit-Koepfen
// Enthaelt: dnet256Model
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

type dnet256Model struct {
	ModelParameters
	DFDim        uint32 `json:"df_dim"`
	EmbeddingDim uint32 `json:"embedding_dim"`

	unconditional bool
}

var _ ModelConverter = (*dnet256Model)(nil)

func (m *dnet256Model) KV() (fsggml.KV, error) {
	c := stylegan.DNet256Config{
		DFDim:         int(cmp.Or(m.DFDim, 64)),
		EmbeddingDim:  int(cmp.Or(m.EmbeddingDim, 256)),
		Unconditional: m.unconditional,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	kv := c.KV()
	if m.Name != "" {
		kv["general.name"] = m.Name
	}
	return kv, nil
}

func (m *dnet256Model) Replacements() []Replacement {
	return []Replacement{
		{Pattern: `^(?:d\.|netD\.)?(?=img_code|(?:UN)?COND_DNET)`, Repl: "disc."},
		{Pattern: `^disc\.img_code_s16\.(\d+)\.(?:module\.)?`, Func: shiftIndex("disc.img_code_s16.", 0, 2, ".")},
		{Pattern: `^disc\.(img_code_s(?:32|64(?:_[12])?))\.0\.(?:module\.)?`, Repl: "disc.$1."},
		{Pattern: `^disc\.UNCOND_DNET\.`, Repl: "disc.uncond_logits."},
		{Pattern: `^disc\.COND_DNET\.`, Repl: "disc.cond_logits."},
		{Pattern: `\.jointConv\.0\.(?:module\.)?`, Repl: ".joint_conv."},
		{Pattern: `\.outlogits\.0\.`, Repl: ".out."},
		{Pattern: `\.weight_orig$`, Repl: ".weight_bar"},
	}
}

// Tensors: der unkonditionale Kopf wird anhand seiner Gewichte erkannt
func (m *dnet256Model) Tensors(ts []Tensor, ft fsggml.FileType) ([]*fsggml.Tensor, error) {
	if err := renameTensors(ts, m.Replacements()); err != nil {
		return nil, err
	}

	ts = slices.DeleteFunc(ts, func(t Tensor) bool {
		if !strings.HasPrefix(t.Name(), "disc.") {
			slog.Debug("skipping tensor", "name", t.Name())
			return true
		}
		return false
	})

	if len(ts) == 0 {
		return nil, fmt.Errorf("no dnet256 tensors found")
	}

	m.unconditional = slices.ContainsFunc(ts, func(t Tensor) bool {
		return strings.HasPrefix(t.Name(), "disc.uncond_logits.")
	})

	out := make([]*fsggml.Tensor, 0, len(ts))
	for _, t := range ts {
		out = append(out, newGGMLTensor(t, ft))
	}
	return out, nil
}
