// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/logutil"
	"github.com/7blacky7/stylegan/model"
	_ "github.com/7blacky7/stylegan/model/models"
	"github.com/7blacky7/stylegan/version"
)

// Serve startet den HTTP-Server und den Model-Cache
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	s := NewServer(ln.Addr())

	srvr := &http.Server{Handler: s.GenerateRoutes()}

	ctx, done := context.WithCancel(context.Background())

	// listen for a ctrl+c and drop loaded models
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		s.sched.unloadAll()
		done()
	}()

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version),
		"models", envconfig.Models(), "architectures", model.Architectures())

	err := srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be done
	// otherwise error out quickly
	if !slices.Contains([]error{http.ErrServerClosed}, err) {
		return err
	}
	<-ctx.Done()
	return nil
}
