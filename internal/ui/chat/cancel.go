// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager guards the cancel function of the reply in flight. Bubble
// Tea copies Model on every Update, so Model holds a *cancelManager to keep
// the mutex from being copied.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	requested  bool
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// set stores the cancel function for a new reply.
func (cm *cancelManager) set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancelFunc = fn
	cm.requested = false
}

// cancel stops the reply in flight. It reports false when nothing was
// running. Safe to call repeatedly.
func (cm *cancelManager) cancel() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc == nil {
		return false
	}
	cm.cancelFunc()
	cm.cancelFunc = nil
	cm.requested = true
	return true
}

// clear releases the context of a finished reply.
func (cm *cancelManager) clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}

// wasCancelled reports whether the last reply was stopped by the user.
func (cm *cancelManager) wasCancelled() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.requested
}
