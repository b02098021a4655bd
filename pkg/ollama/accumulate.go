// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"errors"
	"io"
	"strings"
	"time"
)

// =============================================================================
// PULL PROGRESS
// =============================================================================

// Merge folds later events into p. Status always takes the newest value;
// Digest takes the newest value that is present; Total and Completed only
// change when an event carries them, so a closing status line does not erase
// the last known counts.
func (p *PullEvent) Merge(events ...PullEvent) {
	for _, e := range events {
		p.Status = e.Status
		if e.Digest != "" {
			p.Digest = e.Digest
		}
		if e.Total != nil {
			p.Total = e.Total
		}
		if e.Completed != nil {
			p.Completed = e.Completed
		}
	}
}

// Fraction returns Completed/Total clamped to [0, 1], or 0 when either is
// unknown.
func (p PullEvent) Fraction() float64 {
	if p.Total == nil || p.Completed == nil || *p.Total <= 0 {
		return 0
	}
	f := float64(*p.Completed) / float64(*p.Total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// AggregatePull drains a pull stream into a running summary. onUpdate, when
// non-nil, sees the summary after every event. The stream is always closed.
func AggregatePull(s *Stream[PullEvent], onUpdate func(PullEvent)) (PullEvent, error) {
	var summary PullEvent
	for event, err := range s.All() {
		if err != nil {
			return summary, err
		}
		summary.Merge(event)
		if onUpdate != nil {
			onUpdate(summary)
		}
	}
	return summary, nil
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected during streaming.
type StreamStats struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// Server is what the server reported on the terminal event.
	Server Metrics

	// Measured on the client side.
	TTFT            time.Duration
	TokensPerSecond float64
}

// NewStreamStats creates a new StreamStats with start time set.
func NewStreamStats() *StreamStats {
	return &StreamStats{StartTime: time.Now()}
}

// RecordFirstToken marks the time of first token arrival.
func (s *StreamStats) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize records the terminal event's metrics.
func (s *StreamStats) Finalize(m Metrics) {
	s.EndTime = time.Now()
	s.Server = m
	s.TokensPerSecond = m.TokensPerSecond()
}

// =============================================================================
// CHAT ACCUMULATOR
// =============================================================================

// ChatAccumulator collects streamed chat events into one reply.
type ChatAccumulator struct {
	content   strings.Builder
	toolCalls []ToolCall
	last      ChatEvent
	Stats     *StreamStats
	Done      bool
}

// NewChatAccumulator creates a new accumulator.
func NewChatAccumulator() *ChatAccumulator {
	return &ChatAccumulator{Stats: NewStreamStats()}
}

// Add processes one event.
func (a *ChatAccumulator) Add(e ChatEvent) {
	if e.Message.Content != "" && a.content.Len() == 0 {
		a.Stats.RecordFirstToken()
	}
	a.content.WriteString(e.Message.Content)
	a.toolCalls = append(a.toolCalls, e.Message.ToolCalls...)
	a.last = e

	if e.Done {
		a.Done = true
		a.Stats.Finalize(e.Metrics)
	}
}

// Content returns the accumulated content.
func (a *ChatAccumulator) Content() string {
	return a.content.String()
}

// Result returns the last event with the full message in place of its delta.
func (a *ChatAccumulator) Result() ChatEvent {
	out := a.last
	out.Message.Content = a.content.String()
	out.Message.ToolCalls = a.toolCalls
	if out.Message.Role == "" {
		out.Message.Role = "assistant"
	}
	return out
}

// CollectChat drains a chat stream into a single event whose message holds
// the whole reply. onDelta, when non-nil, sees each event as it arrives.
func CollectChat(s *Stream[ChatEvent], onDelta func(ChatEvent)) (ChatEvent, *StreamStats, error) {
	acc := NewChatAccumulator()
	for event, err := range s.All() {
		if err != nil {
			return acc.Result(), acc.Stats, err
		}
		if onDelta != nil {
			onDelta(event)
		}
		acc.Add(event)
	}
	return acc.Result(), acc.Stats, nil
}

// CollectCompletion drains a generate stream into a single event whose
// Response holds the whole text.
func CollectCompletion(s *Stream[GenerateEvent], onDelta func(GenerateEvent)) (GenerateEvent, error) {
	defer s.Close()

	var (
		text strings.Builder
		last GenerateEvent
	)
	for {
		event, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			last.Response = text.String()
			return last, err
		}
		if onDelta != nil {
			onDelta(event)
		}
		text.WriteString(event.Response)
		last = event
	}
	last.Response = text.String()
	return last, nil
}
