// Package ggml - KV (Key-Value) Metadaten
//
// Dieses Modul enthaelt den KV-Typ und alle zugehoerigen Methoden:
// - KV: Map fuer GGUF Key-Value Metadaten
// - Allgemeine Methoden (Architecture, Name, FileType, ParameterCount)
// - Generische Getter (String, Uint, Float, Bool, Arrays)
package ggml

import (
	"iter"
	"maps"
	"strings"

	"github.com/7blacky7/stylegan/logutil"
)

// KV repraesentiert GGUF Key-Value Metadaten
type KV map[string]any

// Architecture gibt die Modell-Architektur zurueck
func (kv KV) Architecture() string {
	return kv.String("general.architecture", "unknown")
}

// Name gibt den Anzeigenamen zurueck
func (kv KV) Name() string {
	return kv.String("general.name")
}

// ParameterCount gibt die Anzahl der Parameter zurueck
func (kv KV) ParameterCount() uint64 {
	val, _ := keyValue(kv, "general.parameter_count", uint64(0))
	return val
}

// FileType gibt den GGUF FileType zurueck
func (kv KV) FileType() FileType {
	if t, ok := keyValue(kv, "general.file_type", uint32(0)); ok {
		return FileType(t)
	}
	return FileTypeUnknown
}

// Generische Getter

// String gibt einen String-Wert zurueck
func (kv KV) String(key string, defaultValue ...string) string {
	val, _ := keyValue(kv, key, append(defaultValue, "")...)
	return val
}

// Uint gibt einen uint32-Wert zurueck
func (kv KV) Uint(key string, defaultValue ...uint32) uint32 {
	val, _ := keyValue(kv, key, append(defaultValue, 0)...)
	return val
}

// Float gibt einen float32-Wert zurueck
func (kv KV) Float(key string, defaultValue ...float32) float32 {
	val, _ := keyValue(kv, key, append(defaultValue, 0)...)
	return val
}

// Bool gibt einen bool-Wert zurueck
func (kv KV) Bool(key string, defaultValue ...bool) bool {
	val, _ := keyValue(kv, key, append(defaultValue, false)...)
	return val
}

// Strings gibt ein String-Array zurueck
func (kv KV) Strings(key string, defaultValue ...[]string) []string {
	val, _ := keyValue(kv, key, &array[string]{values: append(defaultValue, []string(nil))[0]})
	return val.values
}

// Ints gibt ein int32-Array zurueck
func (kv KV) Ints(key string, defaultValue ...[]int32) []int32 {
	val, _ := keyValue(kv, key, &array[int32]{values: append(defaultValue, []int32(nil))[0]})
	return val.values
}

// Floats gibt ein float32-Array zurueck
func (kv KV) Floats(key string, defaultValue ...[]float32) []float32 {
	val, _ := keyValue(kv, key, &array[float32]{values: append(defaultValue, []float32(nil))[0]})
	return val.values
}

// Len gibt die Anzahl der KV-Paare zurueck
func (kv KV) Len() int {
	return len(kv)
}

// Keys gibt einen Iterator ueber alle Keys zurueck
func (kv KV) Keys() iter.Seq[string] {
	return maps.Keys(kv)
}

// Value gibt den Wert fuer einen Key zurueck
func (kv KV) Value(key string) any {
	return kv[key]
}

// Type Constraints fuer keyValue

type valueTypes interface {
	uint8 | int8 | uint16 | int16 |
		uint32 | int32 | uint64 | int64 |
		string | float32 | float64 | bool
}

type arrayValueTypes interface {
	*array[uint8] | *array[int8] | *array[uint16] | *array[int16] |
		*array[uint32] | *array[int32] | *array[uint64] | *array[int64] |
		*array[string] | *array[float32] | *array[float64] | *array[bool]
}

// keyValue liest einen KV-Wert. Keys ausserhalb von general.* bekommen
// den Architektur-Prefix.
func keyValue[T valueTypes | arrayValueTypes](kv KV, key string, defaultValue ...T) (T, bool) {
	if !strings.HasPrefix(key, "general.") {
		key = kv.Architecture() + "." + key
	}

	if val, ok := kv[key].(T); ok {
		return val, true
	}

	// Roh geschriebene Arrays (vor dem Kodieren) akzeptieren
	var zero T
	switch any(zero).(type) {
	case *array[string]:
		if s, ok := kv[key].([]string); ok {
			return any(&array[string]{size: len(s), values: s}).(T), true
		}
	case *array[int32]:
		if s, ok := kv[key].([]int32); ok {
			return any(&array[int32]{size: len(s), values: s}).(T), true
		}
	case *array[float32]:
		if s, ok := kv[key].([]float32); ok {
			return any(&array[float32]{size: len(s), values: s}).(T), true
		}
	}

	logutil.Trace("key with type not found", "key", key, "default", defaultValue[0])
	return defaultValue[0], false
}
