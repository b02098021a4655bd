// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "context"

// Chat sends a chat request and returns the streamed reply. The stream ends
// after the event with Done set. req.Stream is ignored; chat is always
// streamed.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Stream[ChatEvent], error) {
	req.Stream = true
	if req.Messages == nil {
		req.Messages = []Message{}
	}
	return openStream(ctx, c, "api/chat", "chat", req, func(e ChatEvent) bool { return e.Done })
}

// Completion sends a raw prompt to api/generate and returns the streamed
// reply. The stream ends after the event with Done set.
func (c *Client) Completion(ctx context.Context, req GenerateRequest) (*Stream[GenerateEvent], error) {
	req.Stream = true
	return openStream(ctx, c, "api/generate", "generate", req, func(e GenerateEvent) bool { return e.Done })
}
