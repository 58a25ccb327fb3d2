// Package election decides which peer processes a channel's unprocessed
// queue. The candidate is the author of the nth unprocessed item; a remote
// candidate is confirmed with a capability probe and skipped on silence.
package election

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/platform"
)

const DefaultResponseTimeout = 3 * time.Second

type Resolver struct {
	Agent         platform.Agent
	Neighbourhood platform.Neighbourhood
	Correlator    *Correlator
	MinItems      int
	Delay         int
	Timeout       time.Duration
	Log           *logger.Logger
}

func NewResolver(agent platform.Agent, nb platform.Neighbourhood, correlator *Correlator, minItems, delay int, timeout time.Duration, log *logger.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	return &Resolver{
		Agent:         agent,
		Neighbourhood: nb,
		Correlator:    correlator,
		MinItems:      minItems,
		Delay:         delay,
		Timeout:       timeout,
		Log:           logger.OrNop(log).With("component", "election"),
	}
}

// Responsible walks the queue from the nth item until it finds either the
// local agent or a remote author that confirms it can process. It only ever
// returns true for the local agent.
func (r *Resolver) Responsible(ctx context.Context, queue []model.Item) (bool, error) {
	me, err := r.Agent.Me(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve local agent: %w", err)
	}

	for increment := 0; ; increment++ {
		if len(queue) < r.MinItems+r.Delay+increment {
			r.Log.Debug("not enough unprocessed items", "queue", len(queue), "increment", increment)
			return false, nil
		}

		author := queue[r.MinItems+increment-1].Author
		if author == me {
			return true, nil
		}

		ok, err := r.CanProcess(ctx, author)
		if err != nil {
			return false, err
		}
		if ok {
			r.Log.Debug("deferring to remote agent", "author", author)
			return false, nil
		}
	}
}

// CanProcess asks did whether it has a model configured and waits for the
// answer until the response timeout. Late answers are ignored.
func (r *Resolver) CanProcess(ctx context.Context, did string) (bool, error) {
	token := uuid.New().String()
	done, forget := r.Correlator.Register(token, r.Timeout)
	defer forget()

	if err := r.Neighbourhood.SendSignal(ctx, did, platform.Link{Predicate: model.CanYouProcessItems, Target: token}); err != nil {
		return false, fmt.Errorf("failed to signal %s: %w", did, err)
	}

	timer := time.NewTimer(r.Timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true, nil
	case <-timer.C:
		r.Log.Debug("capability probe timed out", "author", did)
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
