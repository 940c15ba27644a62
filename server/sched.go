// Package server - Model-Cache mit Keep-Alive
//
// Diese Datei enthaelt:
// - Scheduler: Geladene Models und Slots fuer Forward-Passes
// - runnerRef: Referenz auf ein geladenes Model
// - GetRunner/Release: Model leihen und zurueckgeben
package server

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/model"
)

// Scheduler verwaltet geladene Models. Gleichzeitige Forward-Passes sind
// auf STYLEGAN_NUM_PARALLEL begrenzt, geladen wird immer nur ein Model.
type Scheduler struct {
	// loadedMu schuetzt loaded und serialisiert das Laden
	loadedMu sync.Mutex
	loaded   map[string]*runnerRef

	slots *semaphore.Weighted

	loadFn func(path string) (model.Model, error)
}

// InitScheduler erstellt einen neuen Scheduler
func InitScheduler() *Scheduler {
	return &Scheduler{
		loaded: make(map[string]*runnerRef),
		slots:  semaphore.NewWeighted(int64(max(envconfig.NumParallel(), 1))),
		loadFn: model.New,
	}
}

// runnerRef haelt eine Referenz auf ein geladenes Model
type runnerRef struct {
	refMu    sync.Mutex
	refCount uint // Verhindert Entladen wenn > 0

	model     model.Model
	modelPath string
	modTime   time.Time
	details   api.ModelDetails

	sessionDuration time.Duration
	expireTimer     *time.Timer
	expiresAt       time.Time
}

// LogValue formatiert den Runner fuer Logging
func (runner *runnerRef) LogValue() slog.Value {
	if runner == nil {
		return slog.StringValue("nil")
	}
	return slog.GroupValue(
		slog.String("model", runner.modelPath),
		slog.String("arch", runner.details.Architecture),
		slog.Duration("keep_alive", runner.sessionDuration),
	)
}

// GetRunner wartet auf einen freien Slot und gibt das Model fuer path
// zurueck, bei Bedarf frisch geladen. Der zweite Rueckgabewert ist die
// Ladezeit. Jeder erfolgreiche Aufruf braucht genau ein Release.
func (s *Scheduler) GetRunner(ctx context.Context, path string, keepAlive *api.Duration) (*runnerRef, time.Duration, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}

	runner, loadDuration, err := s.acquire(path, keepAlive)
	if err != nil {
		s.slots.Release(1)
		return nil, 0, err
	}

	return runner, loadDuration, nil
}

func (s *Scheduler) acquire(path string, keepAlive *api.Duration) (*runnerRef, time.Duration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}

	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	runner, ok := s.loaded[path]
	if ok && !runner.modTime.Equal(info.ModTime()) {
		slog.Info("checkpoint changed on disk, reloading", "runner", runner)
		delete(s.loaded, path)
		ok = false
	}

	var loadDuration time.Duration
	if !ok {
		start := time.Now()
		m, err := s.loadFn(path)
		if err != nil {
			return nil, 0, err
		}

		g, err := readKV(path)
		if err != nil {
			return nil, 0, err
		}

		runner = &runnerRef{
			model:           m,
			modelPath:       path,
			modTime:         info.ModTime(),
			details:         getModelDetails(g.KV()),
			sessionDuration: envconfig.KeepAlive(),
		}
		s.loaded[path] = runner
		loadDuration = time.Since(start)
		slog.Debug("runner ready", "runner", runner, "duration", loadDuration)
	}

	runner.refMu.Lock()
	defer runner.refMu.Unlock()

	runner.refCount++
	if runner.expireTimer != nil {
		runner.expireTimer.Stop()
		runner.expireTimer = nil
	}
	runner.expiresAt = time.Time{}
	if keepAlive != nil {
		runner.sessionDuration = keepAlive.Duration
	}

	return runner, loadDuration, nil
}

// Release gibt Slot und Model zurueck. Ohne weitere Nutzer laeuft ab hier
// die Keep-Alive-Frist.
func (s *Scheduler) Release(runner *runnerRef) {
	defer s.slots.Release(1)

	runner.refMu.Lock()
	runner.refCount--
	if runner.refCount > 0 {
		runner.refMu.Unlock()
		return
	}

	d := runner.sessionDuration
	switch {
	case envconfig.NoCache() || d <= 0:
		runner.refMu.Unlock()
		s.unload(runner)
	case d == time.Duration(math.MaxInt64):
		// nie entladen
		runner.refMu.Unlock()
	default:
		runner.expiresAt = time.Now().Add(d)
		runner.expireTimer = time.AfterFunc(d, func() { s.unload(runner) })
		runner.refMu.Unlock()
	}
}

// unload entfernt runner aus dem Cache, sofern es niemand mehr nutzt
func (s *Scheduler) unload(runner *runnerRef) {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	runner.refMu.Lock()
	defer runner.refMu.Unlock()

	if runner.refCount > 0 {
		return
	}

	if runner.expireTimer != nil {
		runner.expireTimer.Stop()
		runner.expireTimer = nil
	}

	if s.loaded[runner.modelPath] == runner {
		delete(s.loaded, runner.modelPath)
		slog.Debug("model unloaded", "runner", runner)
	}
}

// unloadAll leert den Cache beim Beenden des Servers
func (s *Scheduler) unloadAll() {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	for path, runner := range s.loaded {
		runner.refMu.Lock()
		if runner.expireTimer != nil {
			runner.expireTimer.Stop()
			runner.expireTimer = nil
		}
		runner.refMu.Unlock()
		delete(s.loaded, path)
	}
}

// snapshot gibt die aktuell geladenen Runner zurueck
func (s *Scheduler) snapshot() []*runnerRef {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	runners := make([]*runnerRef, 0, len(s.loaded))
	for _, runner := range s.loaded {
		runners = append(runners, runner)
	}
	return runners
}
