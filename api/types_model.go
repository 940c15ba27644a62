// types_model.go - Typen fuer Model-Informationen
// Enthaelt: ShowRequest, ShowResponse, ListResponse, ProcessResponse, ModelDetails

package api

import "time"

// ShowRequest is the request passed to [Client.Show].
type ShowRequest struct {
	Model string `json:"model"`

	// Verbose includes array values and all tensors.
	Verbose bool `json:"verbose,omitempty"`
}

// ShowResponse is the response returned from [Client.Show].
type ShowResponse struct {
	Details    ModelDetails   `json:"details,omitempty"`
	ModelInfo  map[string]any `json:"model_info,omitempty"`
	Tensors    []Tensorinfo   `json:"tensors,omitempty"`
	ModifiedAt time.Time      `json:"modified_at,omitempty"`
}

// Tensorinfo beschreibt einen Tensor eines Checkpoints
type Tensorinfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Shape []int  `json:"shape"`
}

// ListResponse is the response from [Client.List].
type ListResponse struct {
	Models []ListModelResponse `json:"models"`
}

// ListModelResponse is a single model description in [ListResponse].
type ListModelResponse struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ProcessResponse is the response from [Client.ListRunning].
type ProcessResponse struct {
	Models []ProcessModelResponse `json:"models"`
}

// ProcessModelResponse is a single model description in [ProcessResponse].
type ProcessModelResponse struct {
	Name      string       `json:"name"`
	Model     string       `json:"model"`
	Details   ModelDetails `json:"details,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ModelDetails provides details about a checkpoint.
type ModelDetails struct {
	Format        string `json:"format"`
	Architecture  string `json:"architecture"`
	FileType      string `json:"file_type"`
	ParameterSize string `json:"parameter_size"`
	Resolution    int    `json:"resolution,omitempty"`
	Generator     bool   `json:"generator"`
	Discriminator bool   `json:"discriminator"`
}
