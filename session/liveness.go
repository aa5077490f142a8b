package session

import (
	"context"
	"time"

	"github.com/jrsteele09/go-storefront-gateway/gateway"
	"github.com/rs/zerolog/log"
)

// livenessRun is one probe goroutine; done is closed when it exits
type livenessRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// CheckLiveness probes whoami once. It does nothing, and makes no network call,
// unless the session is authenticated on a protected view.
func (c *Controller) CheckLiveness(ctx context.Context) {
	c.mu.Lock()
	active := c.livenessWantedLocked()
	c.mu.Unlock()
	if !active {
		return
	}
	c.probe(ctx)
}

func (c *Controller) livenessWantedLocked() bool {
	return !c.closed && c.protected && c.state.Kind == Authenticated
}

// syncLivenessLocked starts or stops the probe goroutine to match the current
// state and view.
func (c *Controller) syncLivenessLocked() {
	if c.livenessWantedLocked() {
		if c.liveness == nil && c.opts.livenessInterval > 0 {
			ctx, cancel := context.WithCancel(context.Background())
			run := &livenessRun{cancel: cancel, done: make(chan struct{})}
			c.liveness = run
			go c.runLiveness(ctx, run.done)
		}
		return
	}
	c.stopLivenessLocked()
}

// stopLivenessLocked cancels the probe goroutine and returns the channel closed on
// its exit, or nil when none was running. Callers must not wait while holding the lock.
func (c *Controller) stopLivenessLocked() chan struct{} {
	run := c.liveness
	if run == nil {
		return nil
	}
	c.liveness = nil
	run.cancel()
	return run.done
}

func (c *Controller) runLiveness(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.livenessInterval)
	defer ticker.Stop()

	log.Debug().Str("realm", string(c.opts.realm)).Dur("interval", c.opts.livenessInterval).Msg("Liveness probe started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("realm", string(c.opts.realm)).Msg("Liveness probe stopped")
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe re-validates the session. Rejection expires it; other failures are logged
// and left for the next tick.
func (c *Controller) probe(ctx context.Context) {
	resp, err := c.whoami(ctx)
	if ctx.Err() != nil {
		return
	}

	c.update(func() []func() {
		if c.state.Kind != Authenticated {
			return nil
		}
		switch {
		case err == nil:
			if p, ok := ParsePrincipal(resp.Body); ok {
				c.storeSummary(p)
				c.state.Principal = &p
			}
			return nil
		case gateway.IsAuthFailure(err):
			return c.expireLocked()
		case gateway.KindOf(err) == gateway.KindAuthRequired:
			return c.setLocked(State{Kind: Unauthenticated})
		}
		log.Warn().Err(err).Str("realm", string(c.opts.realm)).Msg("Liveness probe failed")
		return nil
	})
}
