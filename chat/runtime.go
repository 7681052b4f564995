// Package chat is the completion orchestrator: it drives web search, tool
// gathering, the provider call, chunk folding, and final message state.
//
// Information Hiding:
// - Generation flag and abort-handle bookkeeping
// - Chunk folding and status transitions

package chat

import (
	"context"
	"sync"

	"github.com/richinex/relay/storage"
)

// Runtime is the explicit per-process state handle the orchestrator mutates:
// the generation flag, the abort handles keyed by message id, and the search
// payload cache. One instance is created at app start and shared.
type Runtime struct {
	mu         sync.Mutex
	generating bool
	aborts     map[string]context.CancelFunc

	// Cache holds request-scoped payloads (web search results) keyed for
	// later retrieval by unrelated views.
	Cache *storage.Cache
}

// NewRuntime creates a runtime with an empty cache.
func NewRuntime() *Runtime {
	return &Runtime{
		aborts: make(map[string]context.CancelFunc),
		Cache:  storage.NewCache(),
	}
}

// SetGenerating sets the process-wide generation flag.
func (r *Runtime) SetGenerating(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generating = v
}

// IsGenerating reports whether a completion is in flight.
func (r *Runtime) IsGenerating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generating
}

// RegisterAbort stores the cancel handle for an in-flight message.
func (r *Runtime) RegisterAbort(messageID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborts[messageID] = cancel
}

// ClearAbort drops the handle for a finished message.
func (r *Runtime) ClearAbort(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.aborts, messageID)
}

// Abort cancels the in-flight completion for a message. Idempotent: firing
// it twice, or after the stream has finished, is safe.
func (r *Runtime) Abort(messageID string) {
	r.mu.Lock()
	cancel := r.aborts[messageID]
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
