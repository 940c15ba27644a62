// errors.go - Fehlertypen der Tensor-Engine
// Enthaelt: ErrShape, ShapeError, Catch
package ml

import (
	"errors"
	"fmt"
)

// ErrShape wird von allen Shape-Fehlern umschlossen
var ErrShape = errors.New("ml: shape mismatch")

// ShapeError beschreibt eine unpassende Tensor-Shape in einer Operation.
// Kernel melden ihn per panic; Catch wandelt ihn an der API-Grenze in einen Fehler.
type ShapeError struct {
	Op  string
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("ml: %s: %s", e.Op, e.Msg)
}

func (e *ShapeError) Unwrap() error {
	return ErrShape
}

func shapeErrorf(op, format string, args ...any) *ShapeError {
	return &ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Catch faengt einen ShapeError-panic ab und setzt ihn als Fehler.
// Andere panics werden weitergereicht.
//
//	func (g *Generator) Forward(...) (out *ml.Tensor, err error) {
//		defer ml.Catch(&err)
//		...
//	}
func Catch(err *error) {
	if r := recover(); r != nil {
		if se, ok := r.(*ShapeError); ok {
			*err = se
			return
		}
		panic(r)
	}
}

// Errorf meldet einen Shape-Fehler aus Code ausserhalb des Pakets
func Errorf(op, format string, args ...any) {
	panic(shapeErrorf(op, format, args...))
}
