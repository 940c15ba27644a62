// Package ggml - GGUF Array Handling
//
// Dieses Modul enthaelt Array-spezifische Datenstrukturen:
// - array[T]: Generische Array-Struktur mit Groessenlimit
// - readGGUFArray: Array-Deserialisierung
package ggml

import (
	"encoding/json"
	"fmt"
	"io"
)

// array ist ein KV-Array. Bei Arrays groesser als maxSize wird nur
// die Groesse gespeichert.
type array[T any] struct {
	size   int
	values []T
}

// MarshalJSON serialisiert die Werte (fuer /api/show)
func (a *array[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.values)
}

func newArray[T any](size, maxSize int) *array[T] {
	a := array[T]{size: size}
	if maxSize < 0 || size <= maxSize {
		a.values = make([]T, size)
	}
	return &a
}

// readGGUFArray liest Element-Typ, Laenge und Werte
func readGGUFArray(llm *gguf, r io.Reader) (any, error) {
	t, err := readGGUF[uint32](llm, r)
	if err != nil {
		return nil, err
	}

	n, err := readGGUF[uint64](llm, r)
	if err != nil {
		return nil, err
	}

	size := int(n)
	switch t {
	case ggufTypeUint8:
		return readGGUFArrayData(llm, r, newArray[uint8](size, llm.maxArraySize))
	case ggufTypeInt8:
		return readGGUFArrayData(llm, r, newArray[int8](size, llm.maxArraySize))
	case ggufTypeUint16:
		return readGGUFArrayData(llm, r, newArray[uint16](size, llm.maxArraySize))
	case ggufTypeInt16:
		return readGGUFArrayData(llm, r, newArray[int16](size, llm.maxArraySize))
	case ggufTypeUint32:
		return readGGUFArrayData(llm, r, newArray[uint32](size, llm.maxArraySize))
	case ggufTypeInt32:
		return readGGUFArrayData(llm, r, newArray[int32](size, llm.maxArraySize))
	case ggufTypeUint64:
		return readGGUFArrayData(llm, r, newArray[uint64](size, llm.maxArraySize))
	case ggufTypeInt64:
		return readGGUFArrayData(llm, r, newArray[int64](size, llm.maxArraySize))
	case ggufTypeFloat32:
		return readGGUFArrayData(llm, r, newArray[float32](size, llm.maxArraySize))
	case ggufTypeFloat64:
		return readGGUFArrayData(llm, r, newArray[float64](size, llm.maxArraySize))
	case ggufTypeBool:
		return readGGUFArrayData(llm, r, newArray[bool](size, llm.maxArraySize))
	case ggufTypeString:
		a := newArray[string](size, llm.maxArraySize)
		for i := range a.size {
			if a.values == nil {
				if err := discardGGUFString(llm, r); err != nil {
					return nil, err
				}
				continue
			}

			if a.values[i], err = readGGUFString(llm, r); err != nil {
				return nil, err
			}
		}
		return a, nil
	default:
		return nil, fmt.Errorf("invalid array type: %d", t)
	}
}

func readGGUFArrayData[T any](llm *gguf, r io.Reader, a *array[T]) (any, error) {
	for i := range a.size {
		e, err := readGGUF[T](llm, r)
		if err != nil {
			return nil, err
		}
		if a.values != nil {
			a.values[i] = e
		}
	}
	return a, nil
}
