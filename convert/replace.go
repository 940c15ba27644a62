// replace.go - Geordnete Umbenennungs-Regeln fuer Tensor-Namen
// Enthaelt: Replacement, Replacer, renameTensors
//
// Anders als strings.Replacer werden die Regeln nacheinander auf den
// jeweils bereits umbenannten Namen angewendet. Die Regeln sind
// .NET-Regexe (regexp2), damit Lookarounds moeglich sind.
package convert

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dlclark/regexp2"
)

// Replacement ist eine Regel: Pattern wird durch Repl ersetzt ($1, ${name}).
// Ist Func gesetzt, liefert sie den Ersatz fuer jeden Treffer.
type Replacement struct {
	Pattern string
	Repl    string
	Func    func(regexp2.Match) string
}

type compiledReplacement struct {
	Replacement
	re *regexp2.Regexp
}

// Replacer wendet Regeln der Reihe nach an
type Replacer struct {
	rules []compiledReplacement
}

// NewReplacer kompiliert die Regeln
func NewReplacer(rs ...Replacement) (*Replacer, error) {
	r := &Replacer{}
	for _, rule := range rs {
		re, err := regexp2.Compile(rule.Pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("replacement %q: %w", rule.Pattern, err)
		}
		r.rules = append(r.rules, compiledReplacement{Replacement: rule, re: re})
	}
	return r, nil
}

// Replace gibt den umbenannten Namen zurueck
func (r *Replacer) Replace(name string) (string, error) {
	var err error
	for _, rule := range r.rules {
		if rule.Func != nil {
			name, err = rule.re.ReplaceFunc(name, rule.Func, -1, -1)
		} else {
			name, err = rule.re.Replace(name, rule.Repl, -1, -1)
		}
		if err != nil {
			return "", fmt.Errorf("replacement %q: %w", rule.Pattern, err)
		}
	}
	return name, nil
}

// renameTensors benennt alle Tensoren um
func renameTensors(ts []Tensor, rs []Replacement) error {
	r, err := NewReplacer(rs...)
	if err != nil {
		return err
	}

	for _, t := range ts {
		name, err := r.Replace(t.Name())
		if err != nil {
			return err
		}
		if name != t.Name() {
			slog.Debug("rename tensor", "from", t.Name(), "to", name)
		}
		t.SetName(name)
	}
	return nil
}

// shiftIndex ersetzt Gruppe 1 eines Treffers durch (n + delta) / div
// und haengt prefix davor und suffix dahinter
func shiftIndex(prefix string, delta, div int, suffix string) func(regexp2.Match) string {
	return func(m regexp2.Match) string {
		n, err := strconv.Atoi(m.GroupByNumber(1).String())
		if err != nil {
			return m.String()
		}
		return prefix + strconv.Itoa((n+delta)/div) + suffix
	}
}
