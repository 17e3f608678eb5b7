package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_Allow(t *testing.T) {
	tb := NewTokenBucket(3, 0.0)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "bucket should be empty after capacity requests")
}

func TestTokenBucket_Refill(t *testing.T) {
	// 50 tokens per second, so a drained bucket recovers within the test
	tb := NewTokenBucket(1, 50.0)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, tb.Allow(), "bucket should refill over time")
}

func TestTokenBucket_Reset(t *testing.T) {
	tb := NewTokenBucket(1, 0.0)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 0.0, 0)

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("bob"), "a drained key must not affect other keys")
}

func TestRateLimiter_AllowAction(t *testing.T) {
	rl := NewRateLimiter(1, 0.0, 0)

	assert.True(t, rl.AllowAction("alice", "add-email"))
	assert.False(t, rl.AllowAction("alice", "add-email"))
	assert.True(t, rl.AllowAction("alice", "confirm"), "actions have separate budgets")
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(1, 0.0, 0)

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	rl.Reset("alice")
	assert.True(t, rl.Allow("alice"))
}
