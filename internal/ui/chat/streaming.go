// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/thinkchat/internal/segment"
)

// DefaultFPS caps redraws while a reply streams.
const DefaultFPS = 30

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer sits between the goroutine running a reply and the Bubble
// Tea loop. The session writes every snapshot into it; the UI picks up the
// latest one at most fps times per second. Intermediate snapshots are
// dropped, which is safe because each snapshot is a complete view of the
// reply so far.
//
// StreamingBuffer implements session.Sink.
type StreamingBuffer struct {
	mu      sync.Mutex
	snap    segment.Snapshot
	dirty   bool
	done    bool
	writes  int
	limiter *rate.Limiter
	every   time.Duration
}

// NewStreamingBuffer creates a buffer that releases at most fps snapshots
// per second. Values outside 1..120 fall back to DefaultFPS.
func NewStreamingBuffer(fps int) *StreamingBuffer {
	if fps < 1 || fps > 120 {
		fps = DefaultFPS
	}
	return &StreamingBuffer{
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
		every:   time.Second / time.Duration(fps),
	}
}

// Update stores the newest snapshot. Called from the streaming goroutine.
func (sb *StreamingBuffer) Update(snap segment.Snapshot) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.snap = snap
	sb.dirty = true
	sb.writes++
}

// Done stores the final snapshot; the next Flush returns it regardless of
// the rate limit.
func (sb *StreamingBuffer) Done(snap segment.Snapshot) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.snap = snap
	sb.dirty = true
	sb.done = true
}

// Flush returns the latest snapshot if it changed since the last flush and
// the limiter allows a redraw now.
func (sb *StreamingBuffer) Flush() (segment.Snapshot, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.dirty {
		return segment.Snapshot{}, false
	}
	if !sb.done && !sb.limiter.Allow() {
		return segment.Snapshot{}, false
	}
	sb.dirty = false
	return sb.snap, true
}

// Snapshot returns the latest snapshot without consuming it.
func (sb *StreamingBuffer) Snapshot() segment.Snapshot {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.snap
}

// Writes returns how many updates arrived since the last Reset.
func (sb *StreamingBuffer) Writes() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.writes
}

// Reset clears the buffer for a new reply.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.snap = segment.Snapshot{}
	sb.dirty = false
	sb.done = false
	sb.writes = 0
}

// Interval is the tick period matching the configured frame rate.
func (sb *StreamingBuffer) Interval() time.Duration {
	return sb.every
}

// streamTickCmd schedules the next redraw check.
func streamTickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
