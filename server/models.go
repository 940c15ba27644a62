// models.go - Aufloesung von Model-Namen und Checkpoint-Details
// Enthaelt: modelPath(), modelName(), getModelDetails()

package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/format"
	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/model/models/stylegan"
)

const modelExt = ".gguf"

var (
	errModelRequired = errors.New("model is required")
	errModelNotFound = errors.New("model not found")
)

// modelPath loest einen Model-Namen im Models-Verzeichnis auf.
// Namen sind Dateinamen mit oder ohne .gguf, Pfade sind nicht erlaubt.
func modelPath(name string) (string, error) {
	if name == "" {
		return "", errModelRequired
	}

	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", fmt.Errorf("invalid model name %q", name)
	}

	p := filepath.Join(envconfig.Models(), strings.TrimSuffix(name, modelExt)+modelExt)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %q", errModelNotFound, name)
	} else if err != nil {
		return "", err
	}

	return p, nil
}

// modelName ist der Anzeigename eines Checkpoints
func modelName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), modelExt)
}

// getModelDetails fasst die Metadaten eines Checkpoints zusammen
func getModelDetails(kv fsggml.KV) api.ModelDetails {
	details := api.ModelDetails{
		Format:        "gguf",
		Architecture:  kv.Architecture(),
		FileType:      kv.FileType().String(),
		ParameterSize: format.HumanNumber(kv.ParameterCount()),
	}

	switch kv.Architecture() {
	case stylegan.Architecture:
		details.Resolution = int(kv.Uint("size"))
		details.Generator = kv.Bool("generator", true)
		details.Discriminator = kv.Bool("discriminator", true)
	case stylegan.DNet256Architecture:
		details.Resolution = stylegan.DNet256Size
		details.Discriminator = true
	}

	return details
}

// readKV liest nur die Metadaten eines Checkpoints
func readKV(path string) (*fsggml.GGML, error) {
	g, f, err := fsggml.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return g, nil
}
