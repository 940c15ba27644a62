// Package api - API-Methoden des Clients.
// Dieses Modul enthaelt alle Endpunkt-Methoden.

package api

import (
	"context"
	"net/http"
)

// Generate creates images from random or given latents.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Discriminate scores images, optionally against a text embedding.
func (c *Client) Discriminate(ctx context.Context, req *DiscriminateRequest) (*DiscriminateResponse, error) {
	var resp DiscriminateResponse
	if err := c.do(ctx, http.MethodPost, "/api/discriminate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List lists checkpoints that are available in the models directory.
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var lr ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// ListRunning lists models that are currently loaded.
func (c *Client) ListRunning(ctx context.Context) (*ProcessResponse, error) {
	var lr ProcessResponse
	if err := c.do(ctx, http.MethodGet, "/api/ps", nil, &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// Show obtains checkpoint information: hyperparameters and tensors.
func (c *Client) Show(ctx context.Context, req *ShowRequest) (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.do(ctx, http.MethodPost, "/api/show", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat checks if the server has started and is responsive; if yes, it
// returns nil, otherwise an error.
func (c *Client) Heartbeat(ctx context.Context) error {
	if err := c.do(ctx, http.MethodHead, "/", nil, nil); err != nil {
		return err
	}
	return nil
}

// Version returns the stylegan server version as a string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version struct {
		Version string `json:"version"`
	}

	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}

	return version.Version, nil
}
