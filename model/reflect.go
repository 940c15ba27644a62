// Package model - Reflection-basierte Tensor-Population
//
// Dieses Modul enthaelt die Reflection-Logik zum automatischen Befuellen
// von Model-Strukturen mit Tensoren aus einem Checkpoint und zum
// Einsammeln der Tensoren beim Speichern.
//
// Hauptkomponenten:
// - populateFields: Befuellt *ml.Tensor-Felder rekursiv anhand der gguf-Tags
// - collectTensors: Umkehrung, sammelt alle gesetzten Tensoren mit Namen
// - Tag: GGUF-Tag-Struktur fuer Tensor-Namen
// - parseTag: Parst GGUF-Tags aus Struct-Tags
//
// Tag-Syntax: `gguf:"name[,alt:name][,pre:x][,suf:x][,opt]"`. Slice-Elemente
// bekommen ihren Index als eigenen Namensteil ("convs.3.conv.weight").
package model

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/7blacky7/stylegan/logutil"
	"github.com/7blacky7/stylegan/ml"
)

// ErrMissingTensor wird fuer Pflicht-Tensoren zurueckgegeben, die im
// Checkpoint fehlen
var ErrMissingTensor = errors.New("missing tensor")

var tensorType = reflect.TypeOf((*ml.Tensor)(nil))

// Tag repraesentiert einen geparseten GGUF-Tag
type Tag struct {
	name,
	// prefix und suffix werden auf Kind-Tags angewendet
	prefix,
	suffix string
	alternatives []string

	// optional: Fehlen des Tensors ist kein Fehler
	optional bool
}

// parseTag parst einen GGUF-Tag-String in eine Tag-Struktur
func parseTag(s string) (tag Tag) {
	parts := strings.Split(s, ",")
	if len(parts) > 0 {
		tag.name = parts[0]

		for _, part := range parts[1:] {
			if value, ok := strings.CutPrefix(part, "alt:"); ok && tag.name == "" {
				tag.name = value
				logutil.Trace("gguf tag has alt: but no primary name", "tag", s)
			} else if ok {
				tag.alternatives = append(tag.alternatives, value)
			}
			if value, ok := strings.CutPrefix(part, "pre:"); ok {
				tag.prefix = value
			}
			if value, ok := strings.CutPrefix(part, "suf:"); ok {
				tag.suffix = value
			}
			if part == "opt" {
				tag.optional = true
			}
		}
	}

	return
}

// buildTensorNames baut die vollstaendigen Tensor-Namen aus Tags
func buildTensorNames(tags []Tag, prefix, suffix string) (fullNames [][]string) {
	if len(tags) > 0 {
		var names []string
		if tags[0].name != "" {
			for _, n := range append([]string{tags[0].name}, tags[0].alternatives...) {
				names = append(names, prefix+n+suffix)
			}
		}
		childNames := buildTensorNames(tags[1:], tags[0].prefix, tags[0].suffix)
		if len(names) == 0 {
			// Aktueller Tag hat keinen Namen, nur Kind-Namen verwenden
			fullNames = append(fullNames, childNames...)
		} else if len(childNames) == 0 {
			for _, name := range names {
				fullNames = append(fullNames, []string{name})
			}
		} else {
			for _, name := range names {
				for _, childName := range childNames {
					fullNames = append(fullNames, append([]string{name}, childName...))
				}
			}
		}
	}

	return fullNames
}

// tensorStore haelt die geladenen Tensoren eines Checkpoints
type tensorStore struct {
	tensors map[string]*ml.Tensor
	used    map[string]bool
}

func newTensorStore(tensors map[string]*ml.Tensor) *tensorStore {
	return &tensorStore{tensors: tensors, used: make(map[string]bool)}
}

// unused gibt die Namen aller nicht zugewiesenen Tensoren sortiert zurueck
func (s *tensorStore) unused() []string {
	var names []string
	for name := range s.tensors {
		if !s.used[name] {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// suggest sucht den aehnlichsten vorhandenen Tensor-Namen
func (s *tensorStore) suggest(name string) string {
	best, dist := "", len(name)/2+1
	for candidate := range s.tensors {
		if d := levenshtein.ComputeDistance(name, candidate); d < dist || (d == dist && candidate < best) {
			best, dist = candidate, d
		}
	}

	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

// populateFields befuellt alle *ml.Tensor-Felder unter v. Fehlende
// Pflicht-Tensoren werden gesammelt zurueckgegeben.
func populateFields(s *tensorStore, v reflect.Value, tags ...Tag) error {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return populateFields(s, v.Elem(), tags...)
	case reflect.Struct:
	default:
		return nil
	}

	t := v.Type()

	var errs []error
	for i := range t.NumField() {
		vv := v.Field(i)
		if !vv.CanSet() {
			continue
		}

		// Kopie erstellen, damit Geschwister-Felder sich nicht ueberschreiben
		tagsCopy := slices.Clone(tags)
		if tag := t.Field(i).Tag.Get("gguf"); tag != "" {
			tagsCopy = append(tagsCopy, parseTag(tag))
		}

		switch {
		case vv.Type() == tensorType:
			errs = append(errs, s.setTensor(vv, tagsCopy))
		case vv.Kind() == reflect.Slice || vv.Kind() == reflect.Array:
			for j := range vv.Len() {
				elemTags := append(slices.Clone(tagsCopy), Tag{name: strconv.Itoa(j)})
				if elem := vv.Index(j); elem.Type() == tensorType {
					errs = append(errs, s.setTensor(elem, elemTags))
				} else {
					errs = append(errs, populateFields(s, elem, elemTags...))
				}
			}
		default:
			errs = append(errs, populateFields(s, vv, tagsCopy...))
		}
	}

	return errors.Join(errs...)
}

// setTensor setzt v auf den ersten vorhandenen Tensor der Namens-Kandidaten
func (s *tensorStore) setTensor(v reflect.Value, tags []Tag) error {
	names := buildTensorNames(tags, "", "")
	for _, name := range names {
		key := strings.Join(name, ".")
		if tensor, ok := s.tensors[key]; ok {
			logutil.Trace("found tensor", "name", key, "shape", tensor.Shape())
			v.Set(reflect.ValueOf(tensor))
			s.used[key] = true
			return nil
		}
	}

	if len(names) == 0 || slices.ContainsFunc(tags, func(t Tag) bool { return t.optional }) {
		return nil
	}

	key := strings.Join(names[0], ".")
	return fmt.Errorf("%w: %s%s", ErrMissingTensor, key, s.suggest(key))
}

// namedTensor ist ein Tensor mit seinem primaeren GGUF-Namen
type namedTensor struct {
	name   string
	tensor *ml.Tensor
}

// collectTensors sammelt alle gesetzten *ml.Tensor-Felder unter v mit
// ihrem primaeren Namen, in Feld-Reihenfolge
func collectTensors(v reflect.Value, tags ...Tag) (ts []namedTensor) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		if v.Type() == tensorType {
			if names := buildTensorNames(tags, "", ""); len(names) > 0 {
				ts = append(ts, namedTensor{strings.Join(names[0], "."), v.Interface().(*ml.Tensor)})
			}
			return ts
		}
		return collectTensors(v.Elem(), tags...)
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}

			tagsCopy := slices.Clone(tags)
			if tag := t.Field(i).Tag.Get("gguf"); tag != "" {
				tagsCopy = append(tagsCopy, parseTag(tag))
			}
			ts = append(ts, collectTensors(v.Field(i), tagsCopy...)...)
		}
	case reflect.Slice, reflect.Array:
		for j := range v.Len() {
			ts = append(ts, collectTensors(v.Index(j), append(slices.Clone(tags), Tag{name: strconv.Itoa(j)})...)...)
		}
	}

	return ts
}
