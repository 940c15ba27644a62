// types.go - Core API Types (Basis-Typen, Errors, Metriken)
// Enthaelt: StatusError, ImageData, Tensor, Metrics
package api

import (
	"fmt"
	"os"
	"time"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the stylegan server logs for details"
	}
}

// ImageData represents the raw binary data of an image file.
type ImageData []byte

// Tensor transportiert Latents oder Konditionierungen als flache
// float32-Daten in Row-Major-Reihenfolge
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Validate prueft, ob Shape und Datenlaenge zusammenpassen
func (t *Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("tensor: empty shape")
	}

	n := 1
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor: invalid dimension %d in %v", d, t.Shape)
		}
		n *= d
	}

	if n != len(t.Data) {
		return fmt.Errorf("tensor: shape %v needs %d values, got %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// Metrics enthaelt Laufzeit-Metriken fuer Anfragen
type Metrics struct {
	TotalDuration time.Duration `json:"total_duration,omitempty"`
	LoadDuration  time.Duration `json:"load_duration,omitempty"`
	EvalDuration  time.Duration `json:"eval_duration,omitempty"`
}

func (m *Metrics) Summary() {
	if m.TotalDuration > 0 {
		fmt.Fprintf(os.Stderr, "total duration: %v\n", m.TotalDuration)
	}

	if m.LoadDuration > 0 {
		fmt.Fprintf(os.Stderr, "load duration:  %v\n", m.LoadDuration)
	}

	if m.EvalDuration > 0 {
		fmt.Fprintf(os.Stderr, "eval duration:  %v\n", m.EvalDuration)
	}
}
