// Package server - Inferenz-Handler
// Beinhaltet: GenerateHandler, DiscriminateHandler
package server

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/model"
	"github.com/7blacky7/stylegan/model/imageproc"
)

// bindJSON liest den Request-Body; false heisst, die Antwort ist bereits gesetzt
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return false
	} else if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

// checkBatch prueft n gegen STYLEGAN_MAX_BATCH
func checkBatch(n int) error {
	if limit := int(envconfig.MaxBatch()); n > limit {
		return fmt.Errorf("batch size %d exceeds STYLEGAN_MAX_BATCH (%d)", n, limit)
	}
	return nil
}

// scheduleRunner leiht das Model fuer name; false heisst, die Antwort ist bereits gesetzt
func (s *Server) scheduleRunner(c *gin.Context, name string, keepAlive *api.Duration) (*runnerRef, time.Duration, bool) {
	path, err := modelPath(name)
	if err != nil {
		abortWithError(c, pathStatus(err), err)
		return nil, 0, false
	}

	runner, loadDuration, err := s.sched.GetRunner(c.Request.Context(), path, keepAlive)
	if errors.Is(err, context.Canceled) {
		c.AbortWithStatusJSON(499, gin.H{"error": "request canceled"})
		return nil, 0, false
	} else if errors.Is(err, model.ErrUnsupportedModel) {
		abortWithError(c, http.StatusBadRequest, err)
		return nil, 0, false
	} else if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return nil, 0, false
	}

	return runner, loadDuration, true
}

func toTensor(t *api.Tensor) *ml.Tensor {
	if t == nil {
		return nil
	}
	return ml.New(t.Data, t.Shape...)
}

func fromTensor(t *ml.Tensor) *api.Tensor {
	if t == nil {
		return nil
	}
	return &api.Tensor{Shape: t.Shape(), Data: t.Data()}
}

// GenerateHandler verarbeitet /api/generate Anfragen
func (s *Server) GenerateHandler(c *gin.Context) {
	checkpointStart := time.Now()

	var req api.GenerateRequest
	if !bindJSON(c, &req) {
		return
	}

	batch := cmp.Or(req.Batch, 1)
	if req.Latents != nil {
		if err := req.Latents.Validate(); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Errorf("latents: %w", err))
			return
		}
		batch = req.Latents.Shape[0]
	}

	if batch < 0 {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid batch size %d", batch))
		return
	}

	if err := checkBatch(batch); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if req.Truncation < 0 || req.Truncation > 1 {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("truncation %g must be in [0, 1]", req.Truncation))
		return
	}

	// Seed 0 zieht einen zufaelligen Seed, der in der Antwort steht
	seed := req.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	runner, loadDuration, ok := s.scheduleRunner(c, req.Model, req.KeepAlive)
	if !ok {
		return
	}
	defer s.sched.Release(runner)

	gen, ok := runner.model.(model.Generator)
	if !ok {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("%q does not support generate", req.Model))
		return
	}

	slog.Debug("generate", "request_id", c.GetString(requestIDKey), "model", req.Model, "batch", batch, "seed", seed)

	evalStart := time.Now()
	res, err := gen.Generate(model.GenerateOptions{
		Batch:             batch,
		Seed:              seed,
		Latents:           toTensor(req.Latents),
		InputIsLatent:     req.InputIsLatent,
		Truncation:        req.Truncation,
		TruncationSamples: req.TruncationSamples,
		FixedNoise:        req.FixedNoise,
		ReturnLatents:     req.ReturnLatents,
	})
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	evalDuration := time.Since(evalStart)

	imgs, err := imageproc.ToImages(res.Images)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	resp := api.GenerateResponse{
		Model:     req.Model,
		CreatedAt: time.Now().UTC(),
		Images:    make([]api.ImageData, len(imgs)),
		Latents:   fromTensor(res.Latents),
		Seed:      seed,
	}

	for i, img := range imgs {
		b, err := imageproc.EncodePNG(img)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, err)
			return
		}
		resp.Images[i] = b
	}

	resp.Metrics = api.Metrics{
		TotalDuration: time.Since(checkpointStart),
		LoadDuration:  loadDuration,
		EvalDuration:  evalDuration,
	}

	c.JSON(http.StatusOK, resp)
}

// DiscriminateHandler verarbeitet /api/discriminate Anfragen
func (s *Server) DiscriminateHandler(c *gin.Context) {
	checkpointStart := time.Now()

	var req api.DiscriminateRequest
	if !bindJSON(c, &req) {
		return
	}

	if len(req.Images) == 0 {
		abortWithError(c, http.StatusBadRequest, imageproc.ErrNoImages)
		return
	}

	if err := checkBatch(len(req.Images)); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if req.Condition != nil {
		if err := req.Condition.Validate(); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Errorf("condition: %w", err))
			return
		}

		if len(req.Condition.Shape) != 2 || req.Condition.Shape[0] != len(req.Images) {
			abortWithError(c, http.StatusBadRequest, fmt.Errorf("condition must be (%d, embedding_dim), got %v", len(req.Images), req.Condition.Shape))
			return
		}
	}

	imgs := make([]image.Image, len(req.Images))
	for i, data := range req.Images {
		img, _, err := imageproc.Decode(bytes.NewReader(data))
		if err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Errorf("image %d: %w", i, err))
			return
		}
		imgs[i] = img
	}

	runner, loadDuration, ok := s.scheduleRunner(c, req.Model, req.KeepAlive)
	if !ok {
		return
	}
	defer s.sched.Release(runner)

	d, ok := runner.model.(model.Discriminator)
	if !ok {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("%q does not support discriminate", req.Model))
		return
	}

	x, err := imageproc.ToTensor(imgs, d.ImageSize())
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	slog.Debug("discriminate", "request_id", c.GetString(requestIDKey), "model", req.Model, "images", len(imgs), "conditional", req.Condition != nil)

	evalStart := time.Now()
	res, err := d.Discriminate(x, toTensor(req.Condition))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	resp := api.DiscriminateResponse{
		Model:     req.Model,
		CreatedAt: time.Now().UTC(),
		Metrics: api.Metrics{
			TotalDuration: time.Since(checkpointStart),
			LoadDuration:  loadDuration,
			EvalDuration:  time.Since(evalStart),
		},
	}

	if res.Scores != nil {
		resp.Scores = res.Scores.Data()
	}

	if res.CondLogits != nil {
		resp.CondLogits = res.CondLogits.Data()
	}

	c.JSON(http.StatusOK, resp)
}
