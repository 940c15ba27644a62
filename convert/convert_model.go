// convert_model.go - Model-Konvertierung: Laedt und konvertiert Checkpoints zu GGUF
// Hauptfunktionen: LoadModelMetadata, ConvertModel, writeFile
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/model/models/stylegan"
)

// LoadModelMetadata - Liest config.json und waehlt den Converter
func LoadModelMetadata(fsys fs.FS) (ModelConverter, error) {
	bts, err := fs.ReadFile(fsys, "config.json")
	if err != nil {
		return nil, err
	}

	var p ModelParameters
	if err := json.Unmarshal(bts, &p); err != nil {
		return nil, err
	}

	if len(p.Architectures) < 1 {
		return nil, errors.New("unknown architecture")
	}

	conv := createModelConverter(p.Architectures[0])
	if conv == nil {
		return nil, fmt.Errorf("unsupported architecture %q", p.Architectures[0])
	}

	if err := json.Unmarshal(bts, conv); err != nil {
		return nil, err
	}

	return conv, nil
}

// createModelConverter - Factory fuer Converter basierend auf Architektur
func createModelConverter(arch string) ModelConverter {
	switch arch {
	case stylegan.Architecture, "Generator", "Discriminator":
		return &stylegan2Model{}
	case stylegan.DNet256Architecture, "D_NET256":
		return &dnet256Model{}
	default:
		return nil
	}
}

// ConvertModel - Konvertiert das Verzeichnis dir zu einem GGUF-Checkpoint
// Unterstuetzte Eingabeformate: safetensors, Torch-Pickles (*.pt, *.pth, *.ckpt)
func ConvertModel(dir string, f *os.File, ft fsggml.FileType) error {
	conv, err := LoadModelMetadata(os.DirFS(dir))
	if err != nil {
		return err
	}

	ts, err := parseTensors(dir)
	if err != nil {
		return err
	}

	out, err := conv.Tensors(ts, ft)
	if err != nil {
		return err
	}

	kv, err := conv.KV()
	if err != nil {
		return err
	}

	return writeFile(f, kv, out, ft)
}

// writeFile - Schreibt GGUF-Datei mit KV-Metadaten und Tensoren
func writeFile(f *os.File, kv fsggml.KV, ts []*fsggml.Tensor, ft fsggml.FileType) error {
	kv["general.file_type"] = ft
	kv["general.file_version"] = fsggml.FileVersion

	var params uint64
	for _, t := range ts {
		params += t.Elements()
	}
	kv["general.parameter_count"] = params

	slog.Info("writing checkpoint", "arch", kv.Architecture(), "tensors", len(ts), "parameters", params, "file_type", ft)
	return fsggml.WriteGGUF(f, kv, ts)
}
