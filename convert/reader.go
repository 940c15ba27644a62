// reader.go - Erkennung des Eingabeformats
// Hauptfunktionen: parseTensors
package convert

import (
	"errors"
	"io/fs"
	"os"
)

// ErrUnknownTensorFormat wird zurueckgegeben, wenn kein bekanntes
// Gewichts-Format im Verzeichnis liegt
var ErrUnknownTensorFormat = errors.New("unknown tensor format")

// parseTensors liest alle Tensoren aus dir. safetensors hat Vorrang
// vor Torch-Pickles.
func parseTensors(dir string) ([]Tensor, error) {
	fsys := os.DirFS(dir)

	patterns := []struct {
		Pattern string
		Func    func(string, ...string) ([]Tensor, error)
	}{
		{"*.safetensors", parseSafetensors},
		{"*.pt", parseTorch},
		{"*.pth", parseTorch},
		{"*.ckpt", parseTorch},
	}

	for _, pattern := range patterns {
		matches, err := fs.Glob(fsys, pattern.Pattern)
		if err != nil {
			return nil, err
		}

		if len(matches) > 0 {
			return pattern.Func(dir, matches...)
		}
	}

	return nil, ErrUnknownTensorFormat
}
