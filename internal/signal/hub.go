package signal

import (
	"context"
	"sync"

	"github.com/agenthands/synergy/internal/platform"
)

const inboxSize = 256

// Hub is an in-process neighbourhood. Peers joined to the same hub exchange
// signals through buffered inboxes without any network.
type Hub struct {
	mu    sync.Mutex
	peers map[string]*Peer
}

func NewHub() *Hub {
	return &Hub{peers: make(map[string]*Peer)}
}

// Join connects did to the hub. Joining twice replaces the earlier peer.
func (h *Hub) Join(did string) *Peer {
	p := &Peer{
		hub:   h,
		did:   did,
		inbox: make(chan platform.Signal, inboxSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	old := h.peers[did]
	h.peers[did] = p
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}

	p.wg.Add(1)
	go p.loop()
	return p
}

func (h *Hub) peer(did string) *Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peers[did]
}

func (h *Hub) others(did string) []*Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != did {
			out = append(out, p)
		}
	}
	return out
}

func (h *Hub) leave(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[p.did] == p {
		delete(h.peers, p.did)
	}
}

var _ platform.Neighbourhood = (*Peer)(nil)

type Peer struct {
	hub      *Hub
	did      string
	handlers handlers

	inbox chan platform.Signal
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func (p *Peer) DID() string {
	return p.did
}

func (p *Peer) SendSignal(ctx context.Context, recipient string, link platform.Link) error {
	if p.closed() {
		return ErrClosed
	}
	if target := p.hub.peer(recipient); target != nil {
		target.deliver(platform.Signal{Author: p.did, Data: link})
	}
	return nil
}

func (p *Peer) Broadcast(ctx context.Context, link platform.Link) error {
	if p.closed() {
		return ErrClosed
	}
	for _, target := range p.hub.others(p.did) {
		target.deliver(platform.Signal{Author: p.did, Data: link})
	}
	return nil
}

func (p *Peer) Subscribe(fn func(platform.Signal)) func() {
	return p.handlers.add(fn)
}

// Close leaves the hub and waits for the delivery goroutine to exit.
func (p *Peer) Close() error {
	p.once.Do(func() {
		p.hub.leave(p)
		close(p.done)
	})
	p.wg.Wait()
	return nil
}

func (p *Peer) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Peer) deliver(s platform.Signal) {
	select {
	case <-p.done:
	case p.inbox <- s:
	default:
		// inbox full, drop like a lossy transport would
	}
}

func (p *Peer) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case s := <-p.inbox:
			p.handlers.dispatch(s)
		}
	}
}
