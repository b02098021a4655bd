// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"net/http"
)

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// PullModel downloads a model from the registry and streams progress. The
// stream has no terminal flag; it ends when the server closes the body,
// normally right after a "success" status line. insecure allows registries
// without valid TLS.
func (c *Client) PullModel(ctx context.Context, name string, insecure bool) (*Stream[PullEvent], error) {
	return openStream[PullEvent](ctx, c, "api/pull", "pull", pullRequest{
		Name:     name,
		Insecure: insecure,
		Stream:   true,
	}, nil)
}

// ListLocalModels retrieves all models installed on the server.
func (c *Client) ListLocalModels(ctx context.Context) (*ListModelsResponse, error) {
	var resp ListModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "api/tags", "list models", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteModel removes a model and its data.
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "api/delete", "delete model", deleteRequest{Name: name}, nil)
}

// ShowModelInfo returns the license, modelfile, parameters and template of a
// model.
func (c *Client) ShowModelInfo(ctx context.Context, name string) (*ModelInfo, error) {
	var resp ModelInfo
	if err := c.doJSON(ctx, http.MethodPost, "api/show", "show model", showRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CopyModel creates destination as a copy of source. It posts to api/copy,
// the server's copy endpoint, not api/show.
func (c *Client) CopyModel(ctx context.Context, source, destination string) error {
	return c.doJSON(ctx, http.MethodPost, "api/copy", "copy model", copyRequest{
		Source:      source,
		Destination: destination,
	}, nil)
}

// ModelExists reports whether name is installed. Errors other than not-found
// are returned as is.
func (c *Client) ModelExists(ctx context.Context, name string) (bool, error) {
	_, err := c.ShowModelInfo(ctx, name)
	if err == nil {
		return true, nil
	}
	if IsModelNotFound(err) {
		return false, nil
	}
	return false, err
}
