package livesync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BruksfildServices01/barber-sync/internal/feed"
)

// ConnState is the closed set of subscription lifecycle states.
type ConnState string

const (
	StateConnecting ConnState = "connecting"
	StateLive       ConnState = "live"
	StateDegraded   ConnState = "degraded"
	StateClosed     ConnState = "closed"
)

type reconnectorConfig struct {
	shopID         uint
	transport      feed.Transport
	ctx            context.Context
	connectTimeout time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	onEvent        func(feed.Event)
	refresh        func()
	log            *logrus.Entry
	metrics        Metrics
}

// reconnector owns the subscription lifecycle: Connecting -> Live ->
// Degraded -> Connecting, until stop() moves it to Closed for good.
// Transport faults never reach the consumer; they only show up as state.
type reconnector struct {
	cfg reconnectorConfig

	mu       sync.Mutex
	st       ConnState
	failures int
	everLive bool
	timer    *time.Timer
	sub      feed.Subscription
	stopped  bool
}

func newReconnector(cfg reconnectorConfig) *reconnector {
	return &reconnector{cfg: cfg, st: StateConnecting}
}

func (r *reconnector) state() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st
}

// connect issues one subscription attempt. Called from Start and from
// the retry timer.
func (r *reconnector) connect() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.setStateLocked(StateConnecting)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.cfg.ctx, r.cfg.connectTimeout)
	defer cancel()

	sub, err := r.cfg.transport.Subscribe(ctx, r.cfg.shopID, r.cfg.onEvent, r.handleStatus)
	if err != nil {
		r.cfg.log.WithError(err).Warn("feed subscribe failed")
		r.fault()
		return
	}

	r.mu.Lock()
	if r.stopped || r.st == StateDegraded {
		// A fault raced in before the handle was installed. This
		// subscription already lost; the scheduled retry owns recovery.
		r.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	old := r.sub
	r.sub = sub
	r.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
}

func (r *reconnector) handleStatus(st feed.Status) {
	switch st {
	case feed.StatusSubscribed:
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		reconnected := r.everLive
		r.everLive = true
		r.failures = 0
		r.setStateLocked(StateLive)
		r.mu.Unlock()

		if reconnected {
			// The initial fetch already seeded the cache for the first
			// connection. On any later one, events may have been missed
			// while disconnected, so force a full resync.
			r.cfg.refresh()
		}

	case feed.StatusError, feed.StatusTimedOut, feed.StatusClosed:
		r.fault()
	}
}

// fault enters Degraded and schedules a retry. The cache is deliberately
// not cleared: stale-but-present beats empty. Re-entrant faults while a
// retry is already pending are ignored.
func (r *reconnector) fault() {
	r.mu.Lock()
	if r.stopped || r.st == StateDegraded {
		r.mu.Unlock()
		return
	}
	sub := r.sub
	r.sub = nil
	r.failures++
	delay := r.backoffFor(r.failures)
	r.setStateLocked(StateDegraded)
	r.timer = time.AfterFunc(delay, r.connect)
	failures := r.failures
	r.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	r.cfg.log.WithFields(logrus.Fields{
		"failures": failures,
		"retry_in": delay,
	}).Warn("feed degraded, retry scheduled")
}

// stop cancels any scheduled retry and releases the subscription. The
// reconnector is not reusable afterwards.
func (r *reconnector) stop() {
	r.mu.Lock()
	if r.st == StateClosed {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	sub := r.sub
	r.sub = nil
	r.setStateLocked(StateClosed)
	r.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// backoffFor doubles per consecutive failure, capped. failures resets
// after a Live period, so the schedule is monotonic within one outage.
func (r *reconnector) backoffFor(failures int) time.Duration {
	d := r.cfg.initialBackoff
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= r.cfg.maxBackoff {
			return r.cfg.maxBackoff
		}
	}
	if d > r.cfg.maxBackoff {
		return r.cfg.maxBackoff
	}
	return d
}

func (r *reconnector) setStateLocked(st ConnState) {
	if r.st == st {
		return
	}
	r.st = st
	r.cfg.metrics.StateChanged(st)
}
