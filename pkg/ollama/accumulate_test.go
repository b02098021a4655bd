// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

// =============================================================================
// PULL MERGE
// =============================================================================

func TestPullEvent_Merge(t *testing.T) {
	summary := PullEvent{Status: "pulling manifest"}
	summary.Merge(
		PullEvent{Status: "downloading", Digest: "sha:d1", Total: int64Ptr(100), Completed: int64Ptr(50)},
		PullEvent{Status: "success"},
	)

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, "sha:d1", summary.Digest)
	require.NotNil(t, summary.Total)
	require.NotNil(t, summary.Completed)
	assert.Equal(t, int64(100), *summary.Total)
	assert.Equal(t, int64(50), *summary.Completed)
}

func TestPullEvent_MergeLatestWins(t *testing.T) {
	var summary PullEvent
	summary.Merge(PullEvent{Status: "downloading", Digest: "sha:d1", Total: int64Ptr(100), Completed: int64Ptr(100)})
	summary.Merge(PullEvent{Status: "downloading", Digest: "sha:d2", Total: int64Ptr(30), Completed: int64Ptr(0)})

	assert.Equal(t, "sha:d2", summary.Digest)
	assert.Equal(t, int64(30), *summary.Total)
	assert.Equal(t, int64(0), *summary.Completed, "explicit zero is a value, not absence")
}

func TestPullEvent_MergeNothing(t *testing.T) {
	summary := PullEvent{Status: "verifying sha256 digest", Digest: "sha:d1"}
	summary.Merge()
	assert.Equal(t, PullEvent{Status: "verifying sha256 digest", Digest: "sha:d1"}, summary)
}

func TestPullEvent_Fraction(t *testing.T) {
	tests := []struct {
		name string
		e    PullEvent
		want float64
	}{
		{"unknown", PullEvent{Status: "pulling manifest"}, 0},
		{"half", PullEvent{Total: int64Ptr(200), Completed: int64Ptr(100)}, 0.5},
		{"zero total", PullEvent{Total: int64Ptr(0), Completed: int64Ptr(10)}, 0},
		{"overshoot", PullEvent{Total: int64Ptr(10), Completed: int64Ptr(20)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.e.Fraction(), 1e-9)
		})
	}
}

func TestAggregatePull_StopsOnError(t *testing.T) {
	body := newTrackingBody(ndjson(
		`{"status":"downloading","digest":"sha:d1","total":10,"completed":5}`,
		`{"error":"max retries exceeded"}`,
		`{"status":"success"}`,
	))

	summary, err := AggregatePull(NewStream[PullEvent](body, nil), nil)
	require.Error(t, err)
	assert.Equal(t, "downloading", summary.Status)
	assert.Equal(t, int64(5), *summary.Completed)
	assert.True(t, body.closed)
}

// =============================================================================
// CHAT ACCUMULATOR
// =============================================================================

func TestChatAccumulator(t *testing.T) {
	acc := NewChatAccumulator()
	acc.Add(ChatEvent{Message: Message{Role: "assistant", Content: "Hello"}})
	acc.Add(ChatEvent{Message: Message{Role: "assistant", Content: ", world"}})
	assert.False(t, acc.Done)
	assert.False(t, acc.Stats.FirstTokenTime.IsZero())

	acc.Add(ChatEvent{
		Done:    true,
		Metrics: Metrics{EvalCount: 20, EvalDuration: 4e9},
	})

	assert.True(t, acc.Done)
	assert.Equal(t, "Hello, world", acc.Content())

	result := acc.Result()
	assert.Equal(t, "Hello, world", result.Message.Content)
	assert.Equal(t, "assistant", result.Message.Role)
	assert.InDelta(t, 5.0, acc.Stats.TokensPerSecond, 1e-9)
	assert.Equal(t, 20, acc.Stats.Server.EvalCount)
	assert.False(t, acc.Stats.EndTime.IsZero())
}

func TestCollectChat_Error(t *testing.T) {
	body := newTrackingBody(ndjson(
		`{"model":"m","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"par"},"done":false}`,
		`{"model":"m",`,
	))
	s := NewStream(body, func(e ChatEvent) bool { return e.Done })

	result, _, err := CollectChat(s, nil)
	require.Error(t, err)
	assert.True(t, IsDecode(err))
	assert.Equal(t, "par", result.Message.Content)
}
