// types_generate.go - Request/Response-Typen fuer Generate und Discriminate
// Enthaelt: GenerateRequest, GenerateResponse, DiscriminateRequest, DiscriminateResponse

package api

import "time"

// GenerateRequest describes a request sent by [Client.Generate].
type GenerateRequest struct {
	// Model is the model name; it is the file name of a checkpoint in the
	// models directory, with or without the .gguf extension.
	Model string `json:"model"`

	// Seed determines sampled latents and noise. Equal seeds give equal images.
	Seed uint64 `json:"seed,omitempty"`

	// Batch is the number of images to sample when Latents is empty.
	Batch int `json:"batch,omitempty"`

	// Truncation pulls styles towards the W-space average when in (0, 1).
	Truncation float32 `json:"truncation,omitempty"`

	// TruncationSamples overrides STYLEGAN_TRUNCATION_SAMPLES for checkpoints
	// without a stored W-space average.
	TruncationSamples int `json:"truncation_samples,omitempty"`

	// FixedNoise uses the checkpoint's registered noise buffers.
	FixedNoise bool `json:"fixed_noise,omitempty"`

	// Latents replaces sampled latents: (B, dim) or (B, n_latent, dim).
	Latents *Tensor `json:"latents,omitempty"`

	// InputIsLatent treats Latents as W-space styles.
	InputIsLatent bool `json:"input_is_latent,omitempty"`

	// ReturnLatents adds the styles used for synthesis to the response.
	ReturnLatents bool `json:"return_latents,omitempty"`

	// KeepAlive controls how long the model will stay loaded in memory
	// following this request.
	KeepAlive *Duration `json:"keep_alive,omitempty"`
}

// GenerateResponse is the response returned by [Client.Generate].
type GenerateResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`

	// Images are PNG encoded, one per batch element.
	Images []ImageData `json:"images"`

	// Latents is set when ReturnLatents was requested.
	Latents *Tensor `json:"latents,omitempty"`

	Seed uint64 `json:"seed"`

	Metrics
}

// DiscriminateRequest describes a request sent by [Client.Discriminate].
type DiscriminateRequest struct {
	Model string `json:"model"`

	// Images are encoded images (png, jpeg, webp, bmp, tiff). They are
	// resized to the model resolution.
	Images []ImageData `json:"images"`

	// Condition is an optional sentence embedding (B, embedding_dim).
	Condition *Tensor `json:"condition,omitempty"`

	KeepAlive *Duration `json:"keep_alive,omitempty"`
}

// DiscriminateResponse is the response returned by [Client.Discriminate].
type DiscriminateResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`

	// Scores has one value per image; empty for conditional-only heads.
	Scores []float32 `json:"scores,omitempty"`

	// CondLogits is set when a condition was given.
	CondLogits []float32 `json:"cond_logits,omitempty"`

	Metrics
}
