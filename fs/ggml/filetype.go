// filetype.go - GGUF FileType (dominierende Genauigkeit einer Datei)
// Enthaelt: FileType Konstanten, Parsing und Konvertierung zu TensorType

package ggml

import "fmt"

// FileType entspricht general.file_type und beschreibt, in welcher
// Genauigkeit die Gewichte einer Datei gespeichert sind
type FileType uint32

// Werte wie llama_ftype, damit andere GGUF-Werkzeuge die Datei erkennen
const (
	FileTypeF32  FileType = 0
	FileTypeF16  FileType = 1
	FileTypeBF16 FileType = 32

	FileTypeUnknown FileType = 1024
)

// ParseFileType parst den FileType aus einem String
func ParseFileType(s string) (FileType, error) {
	t, err := ParseTensorType(s)
	if err != nil {
		return FileTypeUnknown, fmt.Errorf("unsupported file type: %q", s)
	}

	switch t {
	case TensorTypeF16:
		return FileTypeF16, nil
	case TensorTypeBF16:
		return FileTypeBF16, nil
	default:
		return FileTypeF32, nil
	}
}

// String gibt den FileType als String zurueck
func (t FileType) String() string {
	switch t {
	case FileTypeF32:
		return "F32"
	case FileTypeF16:
		return "F16"
	case FileTypeBF16:
		return "BF16"
	default:
		return "unknown"
	}
}

// Value gibt den numerischen Wert zurueck
func (t FileType) Value() uint32 {
	return uint32(t)
}

// ToTensorType gibt den Tensor-Typ fuer Gewichte dieser Datei zurueck
func (t FileType) ToTensorType() TensorType {
	switch t {
	case FileTypeF16:
		return TensorTypeF16
	case FileTypeBF16:
		return TensorTypeBF16
	default:
		return TensorTypeF32
	}
}
