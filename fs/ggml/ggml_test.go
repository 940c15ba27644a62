package ggml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTemp(t *testing.T, kv KV, ts []*Tensor) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "model.gguf")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := WriteGGUF(f, kv, ts); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWriteDecode(t *testing.T) {
	kv := KV{
		"general.architecture": "stylegan2",
		"general.name":         "ffhq",
		"general.file_type":    FileTypeF16,
		"general.file_version": FileVersion,
		"stylegan2.size":       uint32(256),
		"stylegan2.lr_mlp":     float32(0.01),
		"stylegan2.blur":       []int32{1, 3, 3, 1},
		"stylegan2.tags":       []string{"a", "bc"},
	}

	weights := []float32{0.5, -1.25, 3, 0, 1, -2}
	ts := []*Tensor{
		NewTensor("gen.w32", TensorTypeF32, []int{2, 3}, weights),
		NewTensor("gen.w16", TensorTypeF16, []int{3, 2}, weights),
		NewTensor("gen.bf16", TensorTypeBF16, []int{6}, weights),
		NewTensor("gen.one", TensorTypeF32, []int{1}, []float32{7}),
	}

	g, f, err := Open(writeTemp(t, kv, ts))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got := g.KV()
	if got.Architecture() != "stylegan2" {
		t.Errorf("Architecture = %q", got.Architecture())
	}
	if got.Name() != "ffhq" {
		t.Errorf("Name = %q", got.Name())
	}
	if got.FileType() != FileTypeF16 {
		t.Errorf("FileType = %v", got.FileType())
	}
	if n := got.Uint("size"); n != 256 {
		t.Errorf("size = %d", n)
	}
	if v := got.Float("lr_mlp"); v != 0.01 {
		t.Errorf("lr_mlp = %v", v)
	}
	if diff := cmp.Diff([]int32{1, 3, 3, 1}, got.Ints("blur")); diff != "" {
		t.Errorf("blur (-erwartet +erhalten):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "bc"}, got.Strings("tags")); diff != "" {
		t.Errorf("tags (-erwartet +erhalten):\n%s", diff)
	}
	if n := got.ParameterCount(); n != 19 {
		t.Errorf("ParameterCount = %d, erwartet 19", n)
	}

	tensors := g.Tensors()
	if diff := cmp.Diff([]string{"gen.bf16", "gen.one", "gen.w16", "gen.w32"}, tensors.Names()); diff != "" {
		t.Errorf("Names (-erwartet +erhalten):\n%s", diff)
	}

	want := map[string][]int{
		"gen.w32":  {2, 3},
		"gen.w16":  {3, 2},
		"gen.bf16": {6},
		"gen.one":  {1},
	}
	for _, tt := range tensors.Items() {
		if diff := cmp.Diff(want[tt.Name], tt.Dims()); diff != "" {
			t.Errorf("%s Dims (-erwartet +erhalten):\n%s", tt.Name, diff)
		}
		if tt.Offset%defaultAlignment != 0 {
			t.Errorf("%s: offset %d nicht ausgerichtet", tt.Name, tt.Offset)
		}

		data, err := tt.ReadFloats(f, tensors.Offset)
		if err != nil {
			t.Fatal(err)
		}

		expect := weights
		if tt.Name == "gen.one" {
			expect = []float32{7}
		}
		if diff := cmp.Diff(expect, data); diff != "" {
			t.Errorf("%s (%s) (-erwartet +erhalten):\n%s", tt.Name, tt.Type(), diff)
		}
	}

	if items := tensors.Items("gen.w"); len(items) != 2 {
		t.Errorf("Items(gen.w) = %d, erwartet 2", len(items))
	}
}

func TestWriteRequiresArchitecture(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "x.gguf"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := WriteGGUF(f, KV{"general.name": "x"}, nil); err == nil {
		t.Fatal("erwartet Fehler ohne general.architecture")
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.gguf")
	if err := os.WriteFile(p, []byte("NOPE0000"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Open(p); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, erwartet ErrUnsupportedFormat", err)
	}
}

func TestFileVersion(t *testing.T) {
	cases := map[string]struct {
		version string
		err     error
	}{
		"missing":     {"", nil},
		"current":     {FileVersion, nil},
		"newer minor": {"v1.4.0", nil},
		"older major": {"v0.9.0", ErrIncompatibleVersion},
		"newer major": {"v2.0.0", ErrIncompatibleVersion},
		"invalid":     {"latest", ErrIncompatibleVersion},
		"missing v":   {"1.0.0", ErrIncompatibleVersion},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			kv := KV{"general.architecture": "stylegan2"}
			if tt.version != "" {
				kv["general.file_version"] = tt.version
			}

			if err := CheckFileVersion(kv); !errors.Is(err, tt.err) {
				t.Errorf("CheckFileVersion(%q) = %v, erwartet %v", tt.version, err, tt.err)
			}
		})
	}

	kv := KV{"general.architecture": "stylegan2", "general.file_version": "v3.0.0"}
	if _, _, err := Open(writeTemp(t, kv, nil)); !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("Open = %v, erwartet ErrIncompatibleVersion", err)
	}
}

func TestParseTypes(t *testing.T) {
	for _, s := range []string{"f32", "F16", "bf16", "float32"} {
		if _, err := ParseTensorType(s); err != nil {
			t.Errorf("ParseTensorType(%q): %v", s, err)
		}
	}

	if _, err := ParseTensorType("q4_0"); err == nil {
		t.Error("erwartet Fehler fuer q4_0")
	}

	ft, err := ParseFileType("BF16")
	if err != nil {
		t.Fatal(err)
	}
	if ft.ToTensorType() != TensorTypeBF16 {
		t.Errorf("ToTensorType = %v", ft.ToTensorType())
	}
}
