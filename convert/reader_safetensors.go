// reader_safetensors.go - Leser fuer das safetensors-Format
// Enthaelt: parseSafetensors, safetensor
//
// Aufbau: 8 Byte Header-Laenge (little endian), JSON-Header mit dtype,
// shape und data_offsets je Tensor, danach die Rohdaten.
package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/x448/float16"
)

// maxHeaderSize begrenzt den JSON-Header (100 MiB)
const maxHeaderSize = 100 << 20

type safetensorMetadata struct {
	Type    string   `json:"dtype"`
	Shape   []uint64 `json:"shape"`
	Offsets []int64  `json:"data_offsets"`
}

// parseSafetensors liest die Header aller Dateien. Die Reihenfolge der
// Tensoren folgt dem Header.
func parseSafetensors(dir string, ps ...string) ([]Tensor, error) {
	var ts []Tensor
	for _, p := range ps {
		path := filepath.Join(dir, p)
		headers, offset, err := readSafetensorsHeader(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		for pair := headers.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Key == "__metadata__" {
				continue
			}

			value := pair.Value
			if len(value.Offsets) != 2 || value.Offsets[1] < value.Offsets[0] {
				return nil, fmt.Errorf("%s: %s: invalid data_offsets %v", p, pair.Key, value.Offsets)
			}

			t := &safetensor{
				tensorBase: &tensorBase{name: pair.Key, shape: value.Shape},
				path:       path,
				dtype:      value.Type,
				offset:     offset + value.Offsets[0],
				size:       value.Offsets[1] - value.Offsets[0],
			}

			if width, ok := safetensorWidths[t.dtype]; !ok {
				return nil, fmt.Errorf("%s: %s: unsupported dtype %q", p, pair.Key, t.dtype)
			} else if int64(t.elements()*width) != t.size {
				return nil, fmt.Errorf("%s: %s: %d bytes for shape %v", p, pair.Key, t.size, t.shape)
			}

			ts = append(ts, t)
		}
	}

	return ts, nil
}

func readSafetensorsHeader(path string) (*orderedmap.OrderedMap[string, safetensorMetadata], int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var n int64
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, 0, err
	}

	if n <= 0 || n > maxHeaderSize {
		return nil, 0, fmt.Errorf("invalid header size %d", n)
	}

	b := bytes.NewBuffer(make([]byte, 0, n))
	if _, err := io.CopyN(b, f, n); err != nil {
		return nil, 0, err
	}

	headers := orderedmap.New[string, safetensorMetadata]()
	if err := json.Unmarshal(b.Bytes(), headers); err != nil {
		return nil, 0, err
	}

	return headers, 8 + n, nil
}

// safetensorWidths enthaelt die Bytes je Wert der lesbaren dtypes
var safetensorWidths = map[string]int{
	"F64":  8,
	"F32":  4,
	"F16":  2,
	"BF16": 2,
}

type safetensor struct {
	*tensorBase
	path   string
	dtype  string
	offset int64
	size   int64
}

func (st safetensor) Floats() ([]float32, error) {
	f, err := os.Open(st.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := make([]byte, st.size)
	if _, err := f.ReadAt(b, st.offset); err != nil {
		return nil, fmt.Errorf("%s: %w", st.name, err)
	}

	switch st.dtype {
	case "F32":
		f32s := make([]float32, len(b)/4)
		for i := range f32s {
			f32s[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		}
		return f32s, nil
	case "F64":
		f32s := make([]float32, len(b)/8)
		for i := range f32s {
			f32s[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:])))
		}
		return f32s, nil
	case "F16":
		f32s := make([]float32, len(b)/2)
		for i := range f32s {
			f32s[i] = float16.Frombits(binary.LittleEndian.Uint16(b[i*2:])).Float32()
		}
		return f32s, nil
	case "BF16":
		return bfloat16.DecodeFloat32(b), nil
	default:
		return nil, fmt.Errorf("unknown data type: %s", st.dtype)
	}
}
