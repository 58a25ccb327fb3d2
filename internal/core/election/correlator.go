package election

import (
	"sync"
	"time"
)

// Correlator matches capability responses to outstanding requests by token.
// Responses with unknown or expired tokens are dropped.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*request
	now     func() time.Time
}

type request struct {
	done    chan struct{}
	expires time.Time
}

func NewCorrelator() *Correlator {
	return &Correlator{
		pending: make(map[string]*request),
		now:     time.Now,
	}
}

// Register starts waiting for token. The returned channel is closed when a
// matching response arrives; forget must be called once the wait is over.
func (c *Correlator) Register(token string, ttl time.Duration) (done <-chan struct{}, forget func()) {
	r := &request{done: make(chan struct{}), expires: c.now().Add(ttl)}

	c.mu.Lock()
	c.pending[token] = r
	c.mu.Unlock()

	return r.done, func() {
		c.mu.Lock()
		if c.pending[token] == r {
			delete(c.pending, token)
		}
		c.mu.Unlock()
	}
}

// Resolve reports whether token was awaited.
func (c *Correlator) Resolve(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.pending[token]
	if !ok {
		return false
	}
	delete(c.pending, token)
	if c.now().After(r.expires) {
		return false
	}
	close(r.done)
	return true
}

// Prune drops expired requests and returns how many were removed.
func (c *Correlator) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for token, r := range c.pending {
		if now.After(r.expires) {
			delete(c.pending, token)
			n++
		}
	}
	return n
}

func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
