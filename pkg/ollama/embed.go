// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"net/http"
)

// Embed computes one embedding per input. The response is a single JSON body
// whatever the batch size.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	var resp EmbedResponse
	if err := c.doJSON(ctx, http.MethodPost, "api/embed", "embed", req, &resp); err != nil {
		return nil, err
	}

	if got, want := len(resp.Embeddings), req.Input.Len(); got != want {
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: fmt.Sprintf("embed returned %d vectors for %d inputs", got, want),
		}
	}
	return &resp, nil
}
