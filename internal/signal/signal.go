// Package signal carries neighbourhood signals between peers.
//
// Delivery is best effort: a signal to an unknown or offline peer is dropped,
// and nothing orders signals from different senders.
package signal

import (
	"errors"
	"sync"

	"github.com/agenthands/synergy/internal/platform"
)

var ErrClosed = errors.New("neighbourhood closed")

// handlers is a copy-on-read subscriber list shared by the transports.
type handlers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(platform.Signal)
}

func (h *handlers) add(fn func(platform.Signal)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = make(map[int]func(platform.Signal))
	}
	id := h.nextID
	h.nextID++
	h.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.fns, id)
			h.mu.Unlock()
		})
	}
}

func (h *handlers) dispatch(s platform.Signal) {
	h.mu.Lock()
	fns := make([]func(platform.Signal), 0, len(h.fns))
	for _, fn := range h.fns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
