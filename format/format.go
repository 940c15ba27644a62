// format.go - Menschenlesbare Zahlen und Groessen
// Enthaelt: HumanNumber (Parameteranzahl), HumanBytes (Checkpoint-Groesse)
package format

import (
	"fmt"
	"math"
	"strconv"
)

const (
	Thousand = 1000
	Million  = Thousand * 1000
	Billion  = Million * 1000
)

// HumanNumber formatiert eine Anzahl mit K/M/B-Suffix
func HumanNumber(b uint64) string {
	switch {
	case b >= Billion:
		number := float64(b) / Billion
		if number == math.Floor(number) {
			return fmt.Sprintf("%.0fB", number)
		}
		return fmt.Sprintf("%.1fB", number)
	case b >= Million:
		number := float64(b) / Million
		if number == math.Floor(number) {
			return fmt.Sprintf("%.0fM", number)
		}
		return fmt.Sprintf("%.2fM", number)
	case b >= Thousand:
		return fmt.Sprintf("%.0fK", float64(b)/Thousand)
	default:
		return strconv.FormatUint(b, 10)
	}
}

const (
	Byte = 1

	KiloByte = Byte * 1000
	MegaByte = KiloByte * 1000
	GigaByte = MegaByte * 1000
)

// HumanBytes formatiert eine Byte-Anzahl mit dezimalen Einheiten
func HumanBytes(b int64) string {
	var value float64
	var unit string

	switch {
	case b >= GigaByte:
		value = float64(b) / GigaByte
		unit = "GB"
	case b >= MegaByte:
		value = float64(b) / MegaByte
		unit = "MB"
	case b >= KiloByte:
		value = float64(b) / KiloByte
		unit = "KB"
	default:
		return fmt.Sprintf("%d B", b)
	}

	switch {
	case value >= 10:
		return fmt.Sprintf("%d %s", int(value), unit)
	case value != math.Trunc(value):
		return fmt.Sprintf("%.1f %s", value, unit)
	default:
		return fmt.Sprintf("%d %s", int(value), unit)
	}
}
