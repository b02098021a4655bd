// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/tidwall/gjson"
)

// =============================================================================
// STREAM
// =============================================================================

type streamState int

const (
	stateAwaitingFrame streamState = iota
	stateErrored
	stateDone
)

// Stream is a lazy, forward-only sequence of events decoded from a
// newline-delimited JSON body. Each call to Next reads just enough of the body
// to decode one line; nothing is read ahead and no goroutines are started.
//
// A Stream ends at end of body or after the first event for which the
// terminal predicate reports true. A malformed frame is returned once as an
// error and the Stream is finished. The body is closed whenever the Stream
// finishes; call Close to abandon it early.
//
// A Stream is not safe for concurrent use.
type Stream[T any] struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	terminal func(T) bool
	logger   *slog.Logger

	state  streamState
	frames int
	closed bool
}

// NewStream wraps an NDJSON body. terminal may be nil, in which case the
// stream ends only at end of body.
func NewStream[T any](body io.ReadCloser, terminal func(T) bool) *Stream[T] {
	return &Stream[T]{
		body:     body,
		reader:   bufio.NewReader(body),
		terminal: terminal,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// Next returns the next event. It returns io.EOF once the stream is finished,
// and keeps returning io.EOF on every later call.
func (s *Stream[T]) Next() (T, error) {
	var zero T
	if s.state != stateAwaitingFrame {
		return zero, io.EOF
	}

	for {
		line, readErr := s.reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			// A partial line followed by a read failure is not a frame.
			return zero, s.fail(&ClientError{
				Type:    ErrTypeTransport,
				Message: "read stream",
				Frame:   s.frames + 1,
				Cause:   readErr,
			})
		}

		if len(bytes.TrimSpace(line)) == 0 {
			if readErr != nil {
				s.finish()
				return zero, io.EOF
			}
			continue
		}

		s.frames++
		event, err := s.decode(line)
		if err != nil {
			return zero, s.fail(err)
		}

		if readErr != nil || (s.terminal != nil && s.terminal(event)) {
			s.finish()
		}
		return event, nil
	}
}

// All returns the stream as a range-over-func sequence. An error, if any, is
// the last pair yielded. Breaking out of the loop closes the stream.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for {
			event, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Close abandons the stream and releases the body. It is safe to call more
// than once and after the stream has finished on its own.
func (s *Stream[T]) Close() error {
	if s.state == stateAwaitingFrame {
		s.logger.Debug("stream abandoned", "frames", s.frames)
		s.state = stateDone
	}
	return s.closeBody()
}

// Frames returns how many frames have been read so far.
func (s *Stream[T]) Frames() int {
	return s.frames
}

func (s *Stream[T]) decode(line []byte) (T, error) {
	var event T
	if err := json.Unmarshal(line, &event); err != nil {
		return event, &ClientError{
			Type:    ErrTypeDecode,
			Message: "decode stream frame",
			Frame:   s.frames,
			Cause:   err,
		}
	}
	if bytes.Contains(line, []byte(`"error"`)) {
		if msg := gjson.GetBytes(line, "error"); msg.Type == gjson.String {
			return event, &ClientError{
				Type:    ErrTypeServer,
				Message: msg.String(),
				Frame:   s.frames,
			}
		}
	}
	return event, nil
}

func (s *Stream[T]) fail(err error) error {
	s.state = stateErrored
	s.logger.Debug("stream failed", "frames", s.frames, "error", err)
	_ = s.closeBody()
	return err
}

func (s *Stream[T]) finish() {
	s.state = stateDone
	s.logger.Debug("stream finished", "frames", s.frames)
	_ = s.closeBody()
}

func (s *Stream[T]) closeBody() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
