// convert_types.go - Basis-Typen fuer Checkpoint-Konvertierung
// Haupttypen: ModelParameters, ModelConverter, Tensor, tensorBase
package convert

import (
	"fmt"
	"io"
	"slices"

	fsggml "github.com/7blacky7/stylegan/fs/ggml"
)

// ModelParameters - Gemeinsamer Teil der config.json
type ModelParameters struct {
	Architectures []string `json:"architectures"`
	Name          string   `json:"name"`
}

// ModelConverter - Interface fuer Model-Konvertierung
type ModelConverter interface {
	// Replacements gibt die geordneten Umbenennungs-Regeln fuer Tensor-Namen zurueck
	Replacements() []Replacement

	// Tensors bildet die Eingabe-Tensoren auf Checkpoint-Tensoren ab.
	// Wird vor KV aufgerufen, da die Metadaten vom gefundenen Tensor-Satz abhaengen.
	Tensors([]Tensor, fsggml.FileType) ([]*fsggml.Tensor, error)

	// KV bildet die Parameter auf GGUF-Keys ab
	KV() (fsggml.KV, error)
}

// Tensor - Ein Eingabe-Tensor aus safetensors oder einem Torch-Pickle
type Tensor interface {
	Name() string
	Shape() []uint64
	SetName(string)

	// Floats liest die Daten in Row-Major-Reihenfolge
	Floats() ([]float32, error)
}

type tensorBase struct {
	name  string
	shape []uint64
}

func (t *tensorBase) Name() string {
	return t.name
}

func (t *tensorBase) SetName(name string) {
	t.name = name
}

func (t *tensorBase) Shape() []uint64 {
	return t.shape
}

// elements ist die Anzahl der Werte
func (t *tensorBase) elements() int {
	n := 1
	for _, d := range t.shape {
		n *= int(d)
	}
	return n
}

// dims gibt die Shape als []int zurueck
func dims(t Tensor) []int {
	var ds []int
	for _, d := range t.Shape() {
		ds = append(ds, int(d))
	}
	return ds
}

// tensorKind waehlt den Ziel-Typ: Vektoren bleiben F32
func tensorKind(ds []int, ft fsggml.FileType) fsggml.TensorType {
	if len(ds) < 2 {
		return fsggml.TensorTypeF32
	}
	return ft.ToTensorType()
}

// lazyTensor liest die Quelldaten erst beim Schreiben der GGUF-Datei
type lazyTensor struct {
	src  Tensor
	kind fsggml.TensorType
	dims []int
}

func (t lazyTensor) WriteTo(w io.Writer) (int64, error) {
	data, err := t.src.Floats()
	if err != nil {
		return 0, err
	}
	if len(data) != product(t.dims) {
		return 0, fmt.Errorf("%s: %d values for shape %v", t.src.Name(), len(data), t.dims)
	}
	return fsggml.NewTensor(t.src.Name(), t.kind, t.dims, data).WriteTo(w)
}

// newGGMLTensor erstellt den Ausgabe-Tensor mit optional neuer Shape
func newGGMLTensor(t Tensor, ft fsggml.FileType, ds ...int) *fsggml.Tensor {
	if len(ds) == 0 {
		ds = dims(t)
	}
	kind := tensorKind(ds, ft)

	out := fsggml.NewTensor(t.Name(), kind, ds, nil)
	out.WriterTo = lazyTensor{src: t, kind: kind, dims: slices.Clone(ds)}
	return out
}

func product(ds []int) int {
	n := 1
	for _, d := range ds {
		n *= d
	}
	return n
}
