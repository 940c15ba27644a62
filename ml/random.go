// random.go - Reproduzierbare Zufallsquelle fuer Latents und Rauschen
package ml

import (
	"math/rand/v2"
	"sync"
)

// RNG ist eine gesetzte Gauss-Quelle. Gleicher Seed ergibt gleiche Werte.
// Sicher fuer gleichzeitige Nutzung.
type RNG struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRNG erstellt eine Zufallsquelle mit festem Seed
func NewRNG(seed uint64) *RNG {
	return &RNG{src: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NormFloat32 liefert einen standardnormalverteilten Wert
func (r *RNG) NormFloat32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float32(r.src.NormFloat64())
}

// Uint64 liefert einen gleichverteilten Wert, z.B. fuer abgeleitete Seeds
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Uint64()
}

// Float32 liefert einen gleichverteilten Wert in [0, 1)
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float32()
}

func (r *RNG) fill(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = float32(r.src.NormFloat64())
	}
}
