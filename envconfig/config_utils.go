// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String- und Integer-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"STYLEGAN_DEBUG":              {"STYLEGAN_DEBUG", LogLevel(), "Show additional debug information (e.g. STYLEGAN_DEBUG=1)"},
		"STYLEGAN_HOST":               {"STYLEGAN_HOST", Host(), "IP Address for the stylegan server (default 127.0.0.1:8188)"},
		"STYLEGAN_KEEP_ALIVE":         {"STYLEGAN_KEEP_ALIVE", KeepAlive(), "The duration that models stay loaded in memory (default \"5m\")"},
		"STYLEGAN_MAX_BATCH":          {"STYLEGAN_MAX_BATCH", MaxBatch(), "Maximum number of images per request"},
		"STYLEGAN_MODELS":             {"STYLEGAN_MODELS", Models(), "The path to the models directory"},
		"STYLEGAN_NO_CACHE":           {"STYLEGAN_NO_CACHE", NoCache(), "Unload models after every request"},
		"STYLEGAN_NUM_PARALLEL":       {"STYLEGAN_NUM_PARALLEL", NumParallel(), "Maximum number of parallel forward passes"},
		"STYLEGAN_NUM_THREADS":        {"STYLEGAN_NUM_THREADS", NumThreads(), "Number of CPU workers for tensor kernels"},
		"STYLEGAN_ORIGINS":            {"STYLEGAN_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"STYLEGAN_TRUNCATION_SAMPLES": {"STYLEGAN_TRUNCATION_SAMPLES", TruncationSamples(), "Latents sampled to estimate the W average (default 4096)"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
