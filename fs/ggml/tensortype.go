// tensortype.go - GGML TensorType Definitionen
// Enthaelt: TensorType Konstanten, Parsing und Groessen

package ggml

import (
	"fmt"
	"strings"
)

// TensorType entspricht ggml_type. Unterstuetzt werden nur die
// unquantisierten Gleitkomma-Typen.
type TensorType uint32

const (
	TensorTypeF32  TensorType = 0
	TensorTypeF16  TensorType = 1
	TensorTypeBF16 TensorType = 30
)

// UnsupportedTypeError meldet einen Tensor-Typ, den ReadFloats nicht dekodiert
type UnsupportedTypeError struct {
	Type TensorType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported tensor type %d", uint32(e.Type))
}

// ParseTensorType parst den Tensor-Typ aus einem String (f32, f16, bf16)
func ParseTensorType(s string) (TensorType, error) {
	switch strings.ToLower(s) {
	case "f32", "float32":
		return TensorTypeF32, nil
	case "f16", "float16":
		return TensorTypeF16, nil
	case "bf16", "bfloat16":
		return TensorTypeBF16, nil
	default:
		return 0, fmt.Errorf("unsupported tensor type: %q", s)
	}
}

// Supported prueft ob der Typ gelesen und geschrieben werden kann
func (t TensorType) Supported() bool {
	switch t {
	case TensorTypeF32, TensorTypeF16, TensorTypeBF16:
		return true
	default:
		return false
	}
}

// TypeSize gibt die Byte-Groesse pro Element zurueck
func (t TensorType) TypeSize() uint64 {
	switch t {
	case TensorTypeF32:
		return 4
	case TensorTypeF16, TensorTypeBF16:
		return 2
	default:
		return 0
	}
}

func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	case TensorTypeBF16:
		return "BF16"
	default:
		return "unknown"
	}
}
