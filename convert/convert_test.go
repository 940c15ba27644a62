package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/model"
	"github.com/7blacky7/stylegan/model/models/stylegan"
)

type fixture struct {
	name  string
	shape []int
	data  []float32
}

func fx(name string, shape ...int) fixture {
	n := 1
	for _, d := range shape {
		n *= d
	}

	data := make([]float32, n)
	for i := range data {
		data[i] = float32(math.Sin(float64(i+len(name)))) / 4
	}
	return fixture{name: name, shape: shape, data: data}
}

// writeSafetensors schreibt die Fixtures in Reihenfolge mit dtype F32 oder F16
func writeSafetensors(t *testing.T, path, dtype string, fs []fixture) {
	t.Helper()

	var header, data bytes.Buffer
	header.WriteString("{")
	for i, f := range fs {
		start := data.Len()
		for _, v := range f.data {
			switch dtype {
			case "F32":
				binary.Write(&data, binary.LittleEndian, math.Float32bits(v))
			case "F16":
				binary.Write(&data, binary.LittleEndian, float16.Fromfloat32(v).Bits())
			}
		}

		bts, err := json.Marshal(safetensorMetadata{Type: dtype, Shape: shape64(f.shape), Offsets: []int64{int64(start), int64(data.Len())}})
		require.NoError(t, err)

		if i > 0 {
			header.WriteString(",")
		}
		fmt.Fprintf(&header, "%q:%s", f.name, bts)
	}
	header.WriteString(`,"__metadata__":{"format":"pt"}}`)

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, int64(header.Len()))
	b.Write(header.Bytes())
	b.Write(data.Bytes())
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
}

func shape64(ds []int) []uint64 {
	var s []uint64
	for _, d := range ds {
		s = append(s, uint64(d))
	}
	return s
}

func writeConfig(t *testing.T, dir string, cfg map[string]any) {
	t.Helper()
	bts, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), bts, 0o644))
}

func convertDir(t *testing.T, dir string, ft fsggml.FileType) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.gguf")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, ConvertModel(dir, f, ft))
	return path
}

func modulated(prefix string, in, out, k, wdim int) []fixture {
	return []fixture{
		fx(prefix+".weight", 1, out, in, k, k),
		fx(prefix+".modulation.weight", in, wdim),
		fx(prefix+".modulation.bias", in),
	}
}

func spectral(prefix string, in, out, k int) []fixture {
	return []fixture{
		fx(prefix+".weight_bar", out, in, k, k),
		fx(prefix+".weight_u", out),
		fx(prefix+".weight_v", in*k*k),
		fx(prefix+".bias", out),
	}
}

// stylegan8 sind die Gewichte eines 8x8-Modells mit 8 Kanaelen
// (w_dim 8, n_mlp 2, embedding_dim 4) in der Torch-Benennung
func stylegan8() (gen, disc []fixture) {
	gen = []fixture{
		fx("g_ema.mapping.0.weight", 8, 8), fx("g_ema.mapping.0.bias", 8),
		fx("g_ema.mapping.1.weight", 8, 8), fx("g_ema.mapping.1.bias", 8),
		fx("g_ema.const_input.input", 1, 8, 4, 4),
		fx("g_ema.conv1.noise.weight", 1), fx("g_ema.conv1.activate.bias", 8),
		fx("g_ema.to_rgb1.bias", 1, 3, 1, 1),
		fx("g_ema.convs.0.conv.blur.kernel", 4, 4),
		fx("g_ema.convs.0.noise.weight", 1), fx("g_ema.convs.0.activate.bias", 8),
		fx("g_ema.convs.1.noise.weight", 1), fx("g_ema.convs.1.activate.bias", 8),
		fx("g_ema.to_rgbs.0.bias", 1, 3, 1, 1),
		fx("g_ema.to_rgbs.0.upsample.kernel", 4, 4),
		fx("g_ema.noises.noise_0", 1, 1, 4, 4),
		fx("g_ema.noises.noise_1", 1, 1, 8, 8),
		fx("g_ema.noises.noise_2", 1, 1, 8, 8),
		fx("g.const_input.input", 1, 8, 4, 4, 1),
	}
	gen = append(gen, modulated("g_ema.conv1.conv", 8, 8, 3, 8)...)
	gen = append(gen, modulated("g_ema.to_rgb1.conv", 8, 3, 1, 8)...)
	gen = append(gen, modulated("g_ema.convs.0.conv", 8, 8, 3, 8)...)
	gen = append(gen, modulated("g_ema.convs.1.conv", 8, 8, 3, 8)...)
	gen = append(gen, modulated("g_ema.to_rgbs.0.conv", 8, 3, 1, 8)...)

	disc = []fixture{
		fx("d.convs.0.0.weight", 8, 3, 1, 1), fx("d.convs.0.1.bias", 8),
		fx("d.convs.1.conv1.0.weight", 8, 8, 3, 3), fx("d.convs.1.conv1.1.bias", 8),
		fx("d.convs.1.conv2.0.kernel", 4, 4),
		fx("d.convs.1.conv2.1.weight", 8, 8, 3, 3), fx("d.convs.1.conv2.2.bias", 8),
		fx("d.convs.1.skip.0.kernel", 4, 4),
		fx("d.convs.1.skip.1.weight", 8, 8, 1, 1),
		fx("d.final_conv.0.weight", 8, 9, 3, 3), fx("d.final_conv.1.bias", 8),
		fx("d.final_linear.0.weight", 8, 128), fx("d.final_linear.0.bias", 8),
		fx("d.final_linear.1.weight", 1, 8), fx("d.final_linear.1.bias", 1),
		fx("d.COND_DNET.outlogits.0.weight", 1, 8, 4, 4), fx("d.COND_DNET.outlogits.0.bias", 1),
	}
	disc = append(disc, spectral("d.COND_DNET.jointConv.0.module", 12, 8, 3)...)
	return gen, disc
}

func find(fs []fixture, name string) fixture {
	i := slices.IndexFunc(fs, func(f fixture) bool { return f.name == name })
	return fs[i]
}

func TestConvertStyleGAN2(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{
		"architectures": []string{"stylegan2"},
		"name":          "tiny",
		"size":          8,
		"channel_max":   8,
		"latent":        8,
		"n_mlp":         2,
		"embedding_dim": 4,
	})

	gen, disc := stylegan8()
	writeSafetensors(t, filepath.Join(dir, "g.safetensors"), "F32", gen)
	writeSafetensors(t, filepath.Join(dir, "d.safetensors"), "F16", disc)

	path := convertDir(t, dir, fsggml.FileTypeF32)

	g, f, err := fsggml.Open(path)
	require.NoError(t, err)
	f.Close()

	kv := g.KV()
	require.Equal(t, "tiny", kv.Name())
	require.Equal(t, stylegan.Architecture, kv.Architecture())
	require.True(t, kv.Bool("generator"))
	require.True(t, kv.Bool("discriminator"))

	names := g.Tensors().Names()
	for _, name := range names {
		if filepath.Ext(name) == ".kernel" {
			t.Errorf("Filter-Buffer %s nicht verworfen", name)
		}
	}
	require.Contains(t, names, "disc.blocks.0.conv2.activate.bias")
	require.Contains(t, names, "disc.final_conv.conv.weight")
	require.Contains(t, names, "disc.final_conv.activate.bias")
	require.Contains(t, names, "disc.cond_logits.joint_conv.weight_bar")
	require.Contains(t, names, "gen.noises.2")

	loaded, err := model.New(path)
	require.NoError(t, err)

	m := loaded.(*stylegan.Model)
	require.True(t, m.Generator.HasFixedNoise())
	require.NotNil(t, m.Discriminator)

	want := find(gen, "g_ema.conv1.conv.weight")
	require.Equal(t, []int{8, 8, 3, 3}, m.Generator.Conv1.Conv.Weight.Shape())
	if diff := cmp.Diff(want.data, m.Generator.Conv1.Conv.Weight.Data()); diff != "" {
		t.Errorf("conv1 (-erwartet +erhalten):\n%s", diff)
	}

	if diff := cmp.Diff(find(gen, "g_ema.const_input.input").data, m.Generator.Input.Input.Data()); diff != "" {
		t.Errorf("g_ema muss Vorrang vor g haben:\n%s", diff)
	}

	approx := cmpopts.EquateApprox(0, 1e-3)
	if diff := cmp.Diff(find(disc, "d.final_linear.0.weight").data, m.Discriminator.FinalLinear[0].Weight.Data(), approx); diff != "" {
		t.Errorf("F16-Quelle (-erwartet +erhalten):\n%s", diff)
	}

	out, err := m.Generate(model.GenerateOptions{Batch: 1, Seed: 1, FixedNoise: true})
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 8, 8}, out.Images.Shape())
}

func TestConvertStyleGAN2GeneratorOnly(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{
		"architectures": []string{"Generator"},
		"size":          8,
		"channel_max":   8,
		"w_dim":         8,
		"n_mlp":         2,
		"embedding_dim": 4,
	})

	// einzelnes state_dict ohne g_ema-Prefix
	gen, _ := stylegan8()
	var plain []fixture
	for _, f := range gen {
		if name, ok := cutPrefix(f.name, "g_ema."); ok {
			f.name = name
			plain = append(plain, f)
		}
	}
	writeSafetensors(t, filepath.Join(dir, "model.safetensors"), "F32", plain)

	path := convertDir(t, dir, fsggml.FileTypeF16)

	g, f, err := fsggml.Open(path)
	require.NoError(t, err)
	f.Close()

	require.False(t, g.KV().Bool("discriminator", true))
	require.Equal(t, fsggml.FileTypeF16, g.KV().FileType())

	loaded, err := model.New(path)
	require.NoError(t, err)

	_, err = loaded.(*stylegan.Model).Discriminate(nil, nil)
	require.ErrorIs(t, err, model.ErrNoDiscriminator)
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return s, false
}

func TestConvertDNet256(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{
		"architectures": []string{"D_NET256"},
		"df_dim":        1,
		"embedding_dim": 4,
	})

	var fs []fixture
	for i, ch := range [][2]int{{3, 1}, {1, 2}, {2, 4}, {4, 8}} {
		fs = append(fs, spectral(fmt.Sprintf("img_code_s16.%d.module", 2*i), ch[0], ch[1], 4)...)
	}
	fs = append(fs, spectral("img_code_s32.0.module", 8, 16, 4)...)
	fs = append(fs, spectral("img_code_s64.0.module", 16, 32, 4)...)
	fs = append(fs, spectral("img_code_s64_1.0.module", 32, 16, 3)...)
	fs = append(fs, spectral("img_code_s64_2.0.module", 16, 8, 3)...)
	fs = append(fs, spectral("COND_DNET.jointConv.0.module", 12, 8, 3)...)
	fs = append(fs,
		fx("COND_DNET.outlogits.0.weight", 1, 8, 4, 4), fx("COND_DNET.outlogits.0.bias", 1),
		fx("UNCOND_DNET.outlogits.0.weight", 1, 8, 4, 4), fx("UNCOND_DNET.outlogits.0.bias", 1),
	)
	writeSafetensors(t, filepath.Join(dir, "netD.safetensors"), "F32", fs)

	path := convertDir(t, dir, fsggml.FileTypeF32)

	loaded, err := model.New(path)
	require.NoError(t, err)

	m := loaded.(*stylegan.DNet256Model)
	require.NotNil(t, m.Net.Uncond)
	if diff := cmp.Diff(find(fs, "img_code_s16.6.module.weight_bar").data, m.Net.S16[3].WeightBar.Data()); diff != "" {
		t.Errorf("img_code_s16.6 -> 3 (-erwartet +erhalten):\n%s", diff)
	}
}

func TestReplacements(t *testing.T) {
	cases := []struct {
		conv ModelConverter
		in   string
		want string
	}{
		{&stylegan2Model{}, "g_ema.conv1.conv.modulation.weight", "gen.conv1.conv.mod.weight"},
		{&stylegan2Model{}, "g_ema.style.1.weight", "gen.mapping.0.weight"},
		{&stylegan2Model{}, "g_ema.noises.noise_12", "gen.noises.12"},
		{&stylegan2Model{}, "latent_avg", "gen.mean_latent"},
		{&stylegan2Model{}, "d.convs.0.1.bias", "disc.input.activate.bias"},
		{&stylegan2Model{}, "d.convs.3.conv1.1.bias", "disc.blocks.2.conv1.activate.bias"},
		{&stylegan2Model{}, "d.convs.11.conv2.1.weight", "disc.blocks.10.conv2.conv.weight"},
		{&stylegan2Model{}, "d.convs.2.skip.1.weight", "disc.blocks.1.skip.conv.weight"},
		{&stylegan2Model{}, "d.final_conv.0.weight", "disc.final_conv.conv.weight"},
		{&stylegan2Model{}, "d.final_conv.1.bias", "disc.final_conv.activate.bias"},
		{&stylegan2Model{}, "d.convs.1.conv1.0.weight", "disc.blocks.0.conv1.conv.weight"},
		{&stylegan2Model{}, "d.convs.1.conv2.2.bias", "disc.blocks.0.conv2.activate.bias"},
		{&stylegan2Model{}, "d.final_linear.1.weight", "disc.final_linear.1.weight"},
		{&stylegan2Model{}, "d.COND_DNET.jointConv.0.module.weight_u", "disc.cond_logits.joint_conv.weight_u"},
		{&stylegan2Model{}, "d.COND_DNET.jointConv.0.weight_orig", "disc.cond_logits.joint_conv.weight_bar"},
		{&stylegan2Model{}, "g_ema.convs.1.conv.weight", "gen.convs.1.conv.weight"},
		{&dnet256Model{}, "img_code_s16.4.module.weight_v", "disc.img_code_s16.2.weight_v"},
		{&dnet256Model{}, "img_code_s64_1.0.module.bias", "disc.img_code_s64_1.bias"},
		{&dnet256Model{}, "UNCOND_DNET.outlogits.0.weight", "disc.uncond_logits.out.weight"},
		{&dnet256Model{}, "netD.COND_DNET.jointConv.0.module.weight_bar", "disc.cond_logits.joint_conv.weight_bar"},
	}

	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			r, err := NewReplacer(tt.conv.Replacements()...)
			require.NoError(t, err)

			got, err := r.Replace(tt.in)
			require.NoError(t, err)
			if got != tt.want {
				t.Errorf("Replace(%q) = %q, erwartet %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSafetensorsHeaderOrder(t *testing.T) {
	dir := t.TempDir()
	writeSafetensors(t, filepath.Join(dir, "a.safetensors"), "F32", []fixture{fx("zeta", 2), fx("alpha", 1, 2)})

	ts, err := parseTensors(dir)
	require.NoError(t, err)

	var names []string
	for _, tt := range ts {
		names = append(names, tt.Name())
	}
	if diff := cmp.Diff([]string{"zeta", "alpha"}, names); diff != "" {
		t.Errorf("Reihenfolge (-erwartet +erhalten):\n%s", diff)
	}

	data, err := ts[1].Floats()
	require.NoError(t, err)
	if diff := cmp.Diff(fx("alpha", 1, 2).data, data); diff != "" {
		t.Errorf("Daten (-erwartet +erhalten):\n%s", diff)
	}
}

func TestTorchStrided(t *testing.T) {
	// Transponierte View einer (2, 3)-Matrix
	pt := torch{
		tensorBase: &tensorBase{name: "w", shape: []uint64{3, 2}},
		data:       []float32{0, 1, 2, 3, 4, 5},
		stride:     []int{1, 3},
	}
	require.False(t, pt.contiguous())

	got, err := pt.Floats()
	require.NoError(t, err)
	if diff := cmp.Diff([]float32{0, 3, 1, 4, 2, 5}, got); diff != "" {
		t.Errorf("Floats (-erwartet +erhalten):\n%s", diff)
	}

	pt = torch{
		tensorBase: &tensorBase{name: "v", shape: []uint64{2}},
		data:       []float32{0, 1, 2, 3},
		offset:     2,
		stride:     []int{1},
	}
	got, err = pt.Floats()
	require.NoError(t, err)
	if diff := cmp.Diff([]float32{2, 3}, got); diff != "" {
		t.Errorf("Offset (-erwartet +erhalten):\n%s", diff)
	}
}

func TestConvertErrors(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, map[string]any{"architectures": []string{"stylegan2"}, "size": 8})

		f, err := os.Create(filepath.Join(t.TempDir(), "out.gguf"))
		require.NoError(t, err)
		defer f.Close()

		if err := ConvertModel(dir, f, fsggml.FileTypeF32); !errors.Is(err, ErrUnknownTensorFormat) {
			t.Errorf("err = %v, erwartet ErrUnknownTensorFormat", err)
		}
	})

	t.Run("unsupported architecture", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, map[string]any{"architectures": []string{"LlamaForCausalLM"}})

		_, err := LoadModelMetadata(os.DirFS(dir))
		require.ErrorContains(t, err, "unsupported architecture")
	})

	t.Run("invalid size", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, map[string]any{"architectures": []string{"stylegan2"}, "size": 12})
		gen, _ := stylegan8()
		writeSafetensors(t, filepath.Join(dir, "g.safetensors"), "F32", gen[:4])

		f, err := os.Create(filepath.Join(t.TempDir(), "out.gguf"))
		require.NoError(t, err)
		defer f.Close()

		require.ErrorIs(t, ConvertModel(dir, f, fsggml.FileTypeF32), stylegan.ErrInvalidConfig)
	})
}
