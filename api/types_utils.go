// types_utils.go - Hilfsfunktionen und Utility-Typen
// Enthaelt: Duration

package api

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Duration ist ein JSON-serialisierbarer time.Duration Wrapper.
// Zahlen sind Sekunden, Strings werden mit time.ParseDuration gelesen,
// negative Werte bedeuten "nie entladen".
type Duration struct {
	time.Duration
}

// MarshalJSON serialisiert Duration zu JSON
func (d Duration) MarshalJSON() ([]byte, error) {
	if d.Duration < 0 || d.Duration == time.Duration(math.MaxInt64) {
		return []byte("-1"), nil
	}
	return []byte("\"" + d.Duration.String() + "\""), nil
}

// UnmarshalJSON deserialisiert Duration aus JSON
func (d *Duration) UnmarshalJSON(b []byte) (err error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	d.Duration = 5 * time.Minute

	switch t := v.(type) {
	case float64:
		if t < 0 {
			d.Duration = time.Duration(math.MaxInt64)
		} else {
			d.Duration = time.Duration(t * float64(time.Second))
		}
	case string:
		d.Duration, err = time.ParseDuration(t)
		if err != nil {
			return err
		}
		if d.Duration < 0 {
			d.Duration = time.Duration(math.MaxInt64)
		}
	default:
		return fmt.Errorf("unsupported type: '%s'", reflect.TypeOf(v))
	}

	return nil
}
