// checkpoint.go - Laden und Speichern der Gewichte
//
// Dieses Modul enthaelt:
// - loadTensors: Liest alle Tensoren eines GGUF-Containers parallel
// - Save: Schreibt ein Model als GGUF-Checkpoint
package model

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/stylegan/envconfig"
	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/ml"
)

// loadTensors dekodiert alle Tensoren in float32
func loadTensors(g *fsggml.GGML, f *os.File) (*tensorStore, error) {
	ts := g.Tensors()

	var mu sync.Mutex
	tensors := make(map[string]*ml.Tensor, len(ts.Items()))

	var eg errgroup.Group
	eg.SetLimit(envconfig.NumThreads())
	for _, t := range ts.Items() {
		eg.Go(func() error {
			data, err := t.ReadFloats(f, ts.Offset)
			if err != nil {
				return err
			}

			tensor := ml.New(data, t.Dims()...)

			mu.Lock()
			defer mu.Unlock()
			tensors[t.Name] = tensor
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return newTensorStore(tensors), nil
}

// Save schreibt m als GGUF-Checkpoint. Gewichte mit mehr als einer Dimension
// werden im Typ von ft gespeichert, Vektoren bleiben F32.
// Die Datei wird erst nach erfolgreichem Schreiben an ihren Platz verschoben.
func Save(path string, m Model, ft fsggml.FileType) error {
	kv := maps.Clone(m.KV())
	kv["general.file_type"] = ft
	kv["general.file_version"] = fsggml.FileVersion

	named := collectTensors(reflect.ValueOf(m))

	seen := make(map[string]bool, len(named))
	ts := make([]*fsggml.Tensor, 0, len(named))
	for _, n := range named {
		if seen[n.name] {
			return fmt.Errorf("duplicate tensor name %q", n.name)
		}
		seen[n.name] = true

		kind := ft.ToTensorType()
		if n.tensor.NumDims() < 2 {
			kind = fsggml.TensorTypeF32
		}
		ts = append(ts, fsggml.NewTensor(n.name, kind, n.tensor.Shape(), n.tensor.Data()))
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".stylegan-*.gguf")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := fsggml.WriteGGUF(f, kv, ts); err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(f.Name(), path); err != nil {
		return err
	}

	slog.Info("model saved", "path", path, "arch", kv.Architecture(), "tensors", len(ts), "file_type", ft)
	return nil
}
