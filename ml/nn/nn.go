// Package nn - Layer-Bausteine fuer die Bildmodelle
//
// Dieses Paket enthaelt die gewichteten Layer, aus denen Generator und
// Discriminator zusammengesetzt werden. Alle Gewichte sind exportierte
// *ml.Tensor-Felder mit gguf-Tags, damit model.New sie per Reflection
// befuellen kann. Hyperparameter setzen die Konstruktoren.
//
// Hauptkomponenten:
// - EqualLinear, EqualConv2d: Layer mit Equalized-Learning-Rate-Skalierung
// - Conv2d, SpectralNormConv2d: Normale und spektral normierte Faltung
// - FusedLeakyReLU, ScaledLeakyReLU: Aktivierungen mit Gain sqrt(2)
// - Blur, Upsample, Downsample: FIR-Filter ueber ml.UpFirDn2D
// - ModulatedConv2d: Style-modulierte Faltung mit Demodulation
// - NoiseInjection: Additives Rauschen mit gelerntem Gewicht
// - Initializer, InitAll, CheckAll: Gewichts-Initialisierung und Shape-Pruefung
package nn

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/7blacky7/stylegan/ml"
)

// Initializer wird von Layern implementiert, die eigene Gewichte besitzen.
// InitWeights initialisiert nur die direkten Tensoren des Layers.
type Initializer interface {
	InitWeights(rng *ml.RNG)
}

// ShapeChecker prueft geladene Gewichte gegen die Konfiguration des Layers
type ShapeChecker interface {
	CheckShapes() error
}

// InitAll initialisiert alle Layer in v in fester Reihenfolge
// (Feld-Reihenfolge, Slice-Index). Gleicher Seed ergibt gleiche Gewichte.
func InitAll(v any, rng *ml.RNG) {
	walk(reflect.ValueOf(v), func(x any) {
		if i, ok := x.(Initializer); ok {
			i.InitWeights(rng)
		}
	})
}

// CheckAll ruft CheckShapes fuer alle Layer in v auf und sammelt die Fehler
func CheckAll(v any) error {
	var errs []error
	walk(reflect.ValueOf(v), func(x any) {
		if c, ok := x.(ShapeChecker); ok {
			if err := c.CheckShapes(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// walk besucht jeden erreichbaren Struct-Pointer genau einmal, Eltern vor Kindern
func walk(v reflect.Value, fn func(any)) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct && v.CanInterface() {
			if v.Type() == reflect.TypeOf((*ml.Tensor)(nil)) {
				return
			}
			fn(v.Interface())
		}
		walk(v.Elem(), fn)
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			if t.Field(i).IsExported() {
				walk(v.Field(i), fn)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			elem := v.Index(i)
			if elem.Kind() == reflect.Struct && elem.CanAddr() {
				elem = elem.Addr()
			}
			walk(elem, fn)
		}
	}
}

// checkShape vergleicht die Shape eines geladenen Tensors mit der erwarteten
func checkShape(name string, t *ml.Tensor, want ...int) error {
	if t == nil {
		return fmt.Errorf("%s: missing tensor", name)
	}
	if got := t.Shape(); !slices.Equal(got, want) {
		return fmt.Errorf("%s: expected shape %v, got %v", name, want, got)
	}
	return nil
}
