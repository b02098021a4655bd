// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is a client for the HTTP API of a local Ollama server.
//
// It covers chat, text completion, embeddings and model management
// (pull, list, show, copy, delete). Network I/O goes through an injected
// Transport, so any *http.Client, or a fake in tests, can be used.
//
// # Key Types
//
//   - Client: immutable handle built with NewBuilder
//   - Transport: anything that can Do an *http.Request
//   - Stream: lazy NDJSON decoder returned by Chat, Completion and PullModel
//   - ClientError: typed error carrying status, body or frame number
//
// # Usage
//
//	client, err := ollama.NewBuilder().WithTransport(http.DefaultClient).Build()
//	stream, err := client.Chat(ctx, ollama.ChatRequest{
//	    Model:    "llama3.2",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	})
//	for event, err := range stream.All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(event.Message.Content)
//	}
//
// A Stream reads from the response body only when the next event is asked
// for. Stop early with Close, by breaking out of the range loop, or by
// cancelling ctx; each releases the connection. Failed requests are never
// retried.
package ollama
