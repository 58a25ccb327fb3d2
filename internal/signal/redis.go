package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/platform"
)

type RedisOptions struct {
	Addr          string
	Password      string
	DB            int
	Neighbourhood string
	DID           string
}

var _ platform.Neighbourhood = (*Redis)(nil)

// Redis carries signals over Redis pub/sub. Every agent listens on the
// neighbourhood broadcast channel and on its own unicast channel.
type Redis struct {
	log      *logger.Logger
	rdb      *goredis.Client
	sub      *goredis.PubSub
	prefix   string
	did      string
	handlers handlers

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedis(ctx context.Context, opts RedisOptions, log *logger.Logger) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if opts.DID == "" {
		return nil, fmt.Errorf("missing agent did")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	r := &Redis{
		log:    logger.OrNop(log).With("component", "redis-signals", "neighbourhood", opts.Neighbourhood),
		rdb:    rdb,
		prefix: "synergy:" + opts.Neighbourhood,
		did:    opts.DID,
	}

	r.sub = rdb.Subscribe(ctx, r.broadcastChannel(), r.agentChannel(opts.DID))
	// ensures subscription actually started
	if _, err := r.sub.Receive(ctx); err != nil {
		_ = r.sub.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	r.cancel = loopCancel
	r.wg.Add(1)
	go r.forward(loopCtx)

	return r, nil
}

func (r *Redis) broadcastChannel() string {
	return r.prefix + ":broadcast"
}

func (r *Redis) agentChannel(did string) string {
	return r.prefix + ":agent:" + did
}

func (r *Redis) SendSignal(ctx context.Context, recipient string, link platform.Link) error {
	return r.publish(ctx, r.agentChannel(recipient), link)
}

func (r *Redis) Broadcast(ctx context.Context, link platform.Link) error {
	return r.publish(ctx, r.broadcastChannel(), link)
}

func (r *Redis) Subscribe(fn func(platform.Signal)) func() {
	return r.handlers.add(fn)
}

func (r *Redis) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.rdb.Close()
}

func (r *Redis) publish(ctx context.Context, channel string, link platform.Link) error {
	raw, err := json.Marshal(platform.Signal{Author: r.did, Data: link})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", link.Predicate, err)
	}
	return nil
}

func (r *Redis) forward(ctx context.Context) {
	defer r.wg.Done()
	ch := r.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = r.sub.Close()
			return
		case m, ok := <-ch:
			if !ok || m == nil {
				return
			}
			var s platform.Signal
			if err := json.Unmarshal([]byte(m.Payload), &s); err != nil {
				r.log.Warn("bad signal payload", "error", err)
				continue
			}
			if s.Author == r.did {
				// our own broadcast echoed back
				continue
			}
			r.handlers.dispatch(s)
		}
	}
}
