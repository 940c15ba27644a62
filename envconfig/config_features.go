// config_features.go - Rechen- und Parallelitaets-Konfiguration
//
// Dieses Modul enthaelt:
// - NumThreads: Worker fuer die CPU-Kernel
// - NumParallel/MaxBatch: Grenzen fuer gleichzeitige Anfragen
// - TruncationSamples: Stichproben fuer den W-Mittelwert
package envconfig

import "runtime"

var (
	// NumParallel ist die maximale Anzahl gleichzeitiger Forward-Passes
	NumParallel = Uint("STYLEGAN_NUM_PARALLEL", 1)

	// MaxBatch begrenzt die Batch-Groesse einer einzelnen Anfrage
	MaxBatch = Uint("STYLEGAN_MAX_BATCH", 16)

	// TruncationSamples ist die Anzahl Latents fuer den W-Mittelwert,
	// falls der Checkpoint keinen gespeicherten Mittelwert enthaelt
	TruncationSamples = Uint("STYLEGAN_TRUNCATION_SAMPLES", 4096)

	// NoCache entlaedt Models direkt nach jeder Anfrage
	NoCache = Bool("STYLEGAN_NO_CACHE")
)

// NumThreads gibt die Anzahl der Worker fuer Tensor-Kernel zurueck
// Konfigurierbar via STYLEGAN_NUM_THREADS
// Default: GOMAXPROCS
func NumThreads() int {
	if n := Uint("STYLEGAN_NUM_THREADS", 0)(); n > 0 {
		return int(n)
	}
	return runtime.GOMAXPROCS(0)
}
