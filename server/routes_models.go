// Package server - Checkpoint-Handler
// Beinhaltet: ListHandler, ShowHandler, PsHandler
package server

import (
	"cmp"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/envconfig"
)

// ListHandler verarbeitet /api/tags Anfragen
func (s *Server) ListHandler(c *gin.Context) {
	entries, err := os.ReadDir(envconfig.Models())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	models := []api.ListModelResponse{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), modelExt) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			slog.Warn("bad model file", "name", e.Name(), "error", err)
			continue
		}

		g, err := readKV(filepath.Join(envconfig.Models(), e.Name()))
		if err != nil {
			slog.Warn("bad model file", "name", e.Name(), "error", err)
			continue
		}

		name := modelName(e.Name())
		models = append(models, api.ListModelResponse{
			Name:       name,
			Model:      name,
			ModifiedAt: info.ModTime(),
			Size:       info.Size(),
			Details:    getModelDetails(g.KV()),
		})
	}

	slices.SortStableFunc(models, func(i, j api.ListModelResponse) int {
		return cmp.Compare(j.ModifiedAt.UnixNano(), i.ModifiedAt.UnixNano())
	})

	c.JSON(http.StatusOK, api.ListResponse{Models: models})
}

// ShowHandler verarbeitet /api/show Anfragen
func (s *Server) ShowHandler(c *gin.Context) {
	var req api.ShowRequest
	if err := c.ShouldBindJSON(&req); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	} else if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	path, err := modelPath(req.Model)
	if err != nil {
		abortWithError(c, pathStatus(err), err)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	g, err := readKV(path)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	kv := g.KV()
	resp := api.ShowResponse{
		Details:    getModelDetails(kv),
		ModelInfo:  make(map[string]any, len(kv)),
		ModifiedAt: info.ModTime(),
	}

	for k, v := range kv {
		resp.ModelInfo[k] = v
	}

	if req.Verbose {
		for _, t := range g.Tensors().Items() {
			resp.Tensors = append(resp.Tensors, api.Tensorinfo{Name: t.Name, Type: t.Type(), Shape: t.Dims()})
		}
	}

	c.JSON(http.StatusOK, resp)
}

// PsHandler verarbeitet /api/ps Anfragen
func (s *Server) PsHandler(c *gin.Context) {
	models := []api.ProcessModelResponse{}

	for _, runner := range s.sched.snapshot() {
		runner.refMu.Lock()
		expiresAt := runner.expiresAt
		if expiresAt.IsZero() && runner.sessionDuration != time.Duration(math.MaxInt64) {
			expiresAt = time.Now().Add(runner.sessionDuration)
		}
		runner.refMu.Unlock()

		name := modelName(runner.modelPath)
		models = append(models, api.ProcessModelResponse{
			Name:      name,
			Model:     name,
			Details:   runner.details,
			ExpiresAt: expiresAt,
		})
	}

	slices.SortStableFunc(models, func(i, j api.ProcessModelResponse) int {
		return cmp.Compare(j.ExpiresAt.Unix(), i.ExpiresAt.Unix())
	})

	c.JSON(http.StatusOK, api.ProcessResponse{Models: models})
}

// pathStatus ordnet Fehler aus modelPath einem HTTP-Status zu
func pathStatus(err error) int {
	if errors.Is(err, errModelNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
