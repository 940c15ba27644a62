// version.go - Versionierung des Checkpoint-Layouts
package ggml

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/mod/semver"
)

// FileVersion ist die Version des Tensor-Layouts, das dieser Code schreibt.
// Nur die Major-Version muss beim Laden uebereinstimmen.
const FileVersion = "v1.0.0"

// ErrIncompatibleVersion wird bei abweichender Major-Version zurueckgegeben
var ErrIncompatibleVersion = errors.New("incompatible checkpoint version")

// CheckFileVersion prueft general.file_version. Fehlt der Key, wird die
// Datei als kompatibel angenommen.
func CheckFileVersion(kv KV) error {
	v := kv.String("general.file_version")
	if v == "" {
		return nil
	}

	if !semver.IsValid(v) {
		return fmt.Errorf("%w: invalid version %q", ErrIncompatibleVersion, v)
	}

	if semver.Major(v) != semver.Major(FileVersion) {
		return fmt.Errorf("%w: file has %s, expected %s.x", ErrIncompatibleVersion, v, semver.Major(FileVersion))
	}

	if semver.Compare(v, FileVersion) > 0 {
		slog.Warn("checkpoint was written by a newer version", "file", v, "supported", FileVersion)
	}

	return nil
}
