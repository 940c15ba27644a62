// Package logutil - slog-Handler fuer Server und CLI
//
// Dieses Modul enthaelt:
// - NewLogger: Text-Logger mit gekuerzten Quellpfaden
// - LevelTrace: Zusaetzliches Level unterhalb von DEBUG
// - Trace/TraceContext: Convenience-Funktionen fuer das Trace-Level
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace liegt unter slog.LevelDebug (STYLEGAN_DEBUG=2)
const LevelTrace slog.Level = -8

// NewLogger erstellt einen Text-Logger; ab DEBUG wird die Quelle mitgeloggt
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

// Trace loggt auf dem Trace-Level ueber den Default-Logger
func Trace(msg string, args ...any) {
	TraceContext(context.TODO(), msg, args...)
}

// TraceContext loggt auf dem Trace-Level mit Kontext
func TraceContext(ctx context.Context, msg string, args ...any) {
	if logger := slog.Default(); logger.Enabled(ctx, LevelTrace) {
		logger.Log(ctx, LevelTrace, msg, args...)
	}
}
