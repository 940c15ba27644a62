// reader_torch.go - Leser fuer PyTorch-Checkpoints (torch.save)
// Enthaelt: parseTorch, torch, flattenDict
//
// Verschachtelte Dicts ({"g_ema": state_dict, "d": ...}) werden zu
// Punkt-getrennten Namen flachgeklopft. Nicht-Tensor-Werte (args, Zaehler)
// werden uebersprungen.
package convert

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

func parseTorch(dir string, ps ...string) ([]Tensor, error) {
	var ts []Tensor
	for _, p := range ps {
		pt, err := pytorch.Load(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		ts, err = flattenDict(ts, "", pt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	return ts, nil
}

// flattenDict haengt alle Tensoren unter v mit prefix an ts an
func flattenDict(ts []Tensor, prefix string, v any) ([]Tensor, error) {
	var err error
	switch v := v.(type) {
	case *pytorch.Tensor:
		t, err := newTorch(prefix, v)
		if err != nil {
			return nil, err
		}
		return append(ts, t), nil
	case *types.Dict:
		for _, k := range v.Keys() {
			if ts, err = flattenDict(ts, joinKey(prefix, k), v.MustGet(k)); err != nil {
				return nil, err
			}
		}
	case *types.OrderedDict:
		for e := v.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if ts, err = flattenDict(ts, joinKey(prefix, entry.Key), entry.Value); err != nil {
				return nil, err
			}
		}
	default:
		slog.Debug("skipping non-tensor value", "key", prefix, "type", fmt.Sprintf("%T", v))
	}

	return ts, nil
}

func joinKey(prefix string, k any) string {
	if prefix == "" {
		return fmt.Sprint(k)
	}
	return prefix + "." + fmt.Sprint(k)
}

type torch struct {
	*tensorBase
	data   []float32
	offset int
	stride []int
}

func newTorch(name string, t *pytorch.Tensor) (*torch, error) {
	var data []float32
	switch storage := t.Source.(type) {
	case *pytorch.FloatStorage:
		data = storage.Data
	case *pytorch.HalfStorage:
		data = storage.Data
	case *pytorch.BFloat16Storage:
		data = storage.Data
	case *pytorch.DoubleStorage:
		data = make([]float32, len(storage.Data))
		for i, f := range storage.Data {
			data[i] = float32(f)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported storage %T", name, t.Source)
	}

	shape := make([]uint64, len(t.Size))
	for i, d := range t.Size {
		shape[i] = uint64(d)
	}

	return &torch{
		tensorBase: &tensorBase{name: name, shape: shape},
		data:       data,
		offset:     t.StorageOffset,
		stride:     t.Stride,
	}, nil
}

// Floats kopiert die Werte, auch fuer nicht zusammenhaengende Views
func (pt torch) Floats() ([]float32, error) {
	n := pt.elements()
	if pt.contiguous() {
		if pt.offset+n > len(pt.data) {
			return nil, fmt.Errorf("%s: storage too small", pt.name)
		}
		return append([]float32(nil), pt.data[pt.offset:pt.offset+n]...), nil
	}

	out := make([]float32, 0, n)
	idx := make([]int, len(pt.shape))
	for range n {
		pos := pt.offset
		for d, i := range idx {
			pos += i * pt.stride[d]
		}
		if pos < 0 || pos >= len(pt.data) {
			return nil, fmt.Errorf("%s: storage too small", pt.name)
		}
		out = append(out, pt.data[pos])

		for d := len(idx) - 1; d >= 0; d-- {
			if idx[d]++; idx[d] < int(pt.shape[d]) {
				break
			}
			idx[d] = 0
		}
	}
	return out, nil
}

func (pt torch) contiguous() bool {
	if len(pt.stride) != len(pt.shape) {
		return len(pt.stride) == 0
	}

	want := 1
	for d := len(pt.shape) - 1; d >= 0; d-- {
		if pt.shape[d] != 1 && pt.stride[d] != want {
			return false
		}
		want *= int(pt.shape[d])
	}
	return true
}
