// Package fs - Gemeinsame Schnittstellen fuer Checkpoint-Formate
package fs

import "iter"

// Config ist die Sicht der Model-Konstruktoren auf die Checkpoint-Metadaten.
// Architektur-Keys werden ohne Prefix angefragt (z.B. "size" statt
// "stylegan2.size"), Keys unter general.* vollstaendig.
type Config interface {
	Architecture() string
	String(string, ...string) string
	Uint(string, ...uint32) uint32
	Float(string, ...float32) float32
	Bool(string, ...bool) bool

	Strings(string, ...[]string) []string
	Ints(string, ...[]int32) []int32
	Floats(string, ...[]float32) []float32

	Len() int
	Keys() iter.Seq[string]
	Value(key string) any
}
