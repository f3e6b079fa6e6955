// Package livesync keeps an in-memory mirror of one shop's appointments
// consistent with the booking store's change feed, surviving transport
// faults without ever publishing a partial cache.
package livesync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BruksfildServices01/barber-sync/internal/feed"
	"github.com/BruksfildServices01/barber-sync/internal/httperr"
	"github.com/BruksfildServices01/barber-sync/internal/models"
)

// Fetcher is the slice of the booking store the synchronizer needs.
type Fetcher interface {
	FetchAppointments(ctx context.Context, shopID uint) ([]models.Appointment, error)
}

// Metrics receives observability callbacks. Implementations must be
// cheap and non-blocking; the default is a no-op.
type Metrics interface {
	EventApplied(t feed.EventType)
	StateChanged(s ConnState)
}

type noopMetrics struct{}

func (noopMetrics) EventApplied(feed.EventType) {}
func (noopMetrics) StateChanged(ConnState)      {}

type Counters struct {
	Inserts uint64 `json:"inserts"`
	Updates uint64 `json:"updates"`
	Deletes uint64 `json:"deletes"`
}

// View is a point-in-time copy of the cache and connection health.
type View struct {
	Appointments []models.Appointment `json:"appointments"`
	Status       ConnState            `json:"connection_status"`
	LastUpdate   time.Time            `json:"last_update"`
	Counters     Counters             `json:"event_counters"`
}

type Options struct {
	FetchTimeout   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Metrics        Metrics
	Logger         *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = 30 * time.Second
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = logrus.WithField("component", "livesync")
	}
	return o
}

// Synchronizer mirrors the appointments of exactly one shop. All cache
// mutation happens one event at a time under a single lock; instances
// for different shops share nothing.
type Synchronizer struct {
	shopID  uint
	store   Fetcher
	opts    Options
	log     *logrus.Entry
	metrics Metrics

	// lifetime context for reconnect attempts; cancelled by Stop so an
	// in-flight subscribe or refresh cannot outlive the synchronizer.
	ctx    context.Context
	cancel context.CancelFunc

	recon *reconnector

	mu         sync.RWMutex
	byID       map[string]*models.Appointment
	order      []*models.Appointment
	lastUpdate time.Time
	counters   Counters
	stopped    bool
}

func New(shopID uint, store Fetcher, transport feed.Transport, opts Options) *Synchronizer {
	opts = opts.withDefaults()

	s := &Synchronizer{
		shopID:  shopID,
		store:   store,
		opts:    opts,
		log:     opts.Logger.WithField("shop_id", shopID),
		metrics: opts.Metrics,
		byID:    make(map[string]*models.Appointment),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.recon = newReconnector(reconnectorConfig{
		shopID:         shopID,
		transport:      transport,
		ctx:            s.ctx,
		connectTimeout: opts.FetchTimeout,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		onEvent:        s.applyEvent,
		refresh:        s.refreshAfterReconnect,
		log:            s.log,
		metrics:        opts.Metrics,
	})

	return s
}

// Start seeds the cache with a full fetch and opens the feed
// subscription. On fetch failure no subscription is opened and the
// caller must retry Start.
func (s *Synchronizer) Start(ctx context.Context) error {
	rows, err := s.fetch(ctx)
	if err != nil {
		s.log.WithError(err).Warn("initial fetch failed")
		return httperr.ErrBusiness("fetch_failed")
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.seedLocked(rows)
	s.mu.Unlock()

	s.recon.connect()
	return nil
}

// Refresh discards the cache and repeats the full fetch. The previous
// cache stays published if the fetch fails.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	rows, err := s.fetch(ctx)
	if err != nil {
		s.log.WithError(err).Warn("refresh fetch failed")
		return httperr.ErrBusiness("fetch_failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.seedLocked(rows)
	return nil
}

// Stop releases the subscription, cancels pending retries and in-flight
// fetches, and freezes the cache. Safe to call from any state, twice.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.recon.stop()
}

// Snapshot returns a copy of the current cache ordered by start time,
// plus connection health and event counters.
func (s *Synchronizer) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]models.Appointment, len(s.order))
	for i, p := range s.order {
		apps[i] = *p
	}
	return View{
		Appointments: apps,
		Status:       s.recon.state(),
		LastUpdate:   s.lastUpdate,
		Counters:     s.counters,
	}
}

func (s *Synchronizer) fetch(ctx context.Context) ([]models.Appointment, error) {
	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	return s.store.FetchAppointments(fctx, s.shopID)
}

func (s *Synchronizer) refreshAfterReconnect() {
	if err := s.Refresh(s.ctx); err != nil {
		s.log.WithError(err).Warn("post-reconnect refresh failed")
	}
}

// applyEvent is invoked by the feed transport, one event at a time.
// Application is idempotent per id, so at-least-once delivery is safe.
func (s *Synchronizer) applyEvent(ev feed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	// Shop scoping is enforced here as well, not just by channel naming.
	if ev.Row.ShopID != s.shopID {
		return
	}

	switch ev.Type {
	case feed.EventInsert:
		s.counters.Inserts++
		if _, ok := s.byID[ev.Row.ID]; ok {
			break // duplicate delivery
		}
		s.insertLocked(ev.Row)

	case feed.EventUpdate:
		s.counters.Updates++
		if existing, ok := s.byID[ev.Row.ID]; ok {
			*existing = ev.Row
			s.sortLocked()
		} else {
			// Missed insert delivery; treat as insert to self-heal.
			s.insertLocked(ev.Row)
		}

	case feed.EventDelete:
		s.counters.Deletes++
		if _, ok := s.byID[ev.Row.ID]; !ok {
			break // unknown id, silent no-op
		}
		delete(s.byID, ev.Row.ID)
		for i, p := range s.order {
			if p.ID == ev.Row.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}

	default:
		s.log.WithField("type", ev.Type).Warn("unknown feed event type")
		return
	}

	s.lastUpdate = time.Now()
	s.metrics.EventApplied(ev.Type)
}

func (s *Synchronizer) insertLocked(row models.Appointment) {
	p := new(models.Appointment)
	*p = row
	s.byID[row.ID] = p
	s.order = append(s.order, p)
	s.sortLocked()
}

func (s *Synchronizer) sortLocked() {
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.order[i].StartTime.Before(s.order[j].StartTime)
	})
}

func (s *Synchronizer) seedLocked(rows []models.Appointment) {
	s.byID = make(map[string]*models.Appointment, len(rows))
	s.order = make([]*models.Appointment, 0, len(rows))
	for _, row := range rows {
		if row.ShopID != s.shopID {
			continue
		}
		p := new(models.Appointment)
		*p = row
		s.byID[row.ID] = p
		s.order = append(s.order, p)
	}
	s.sortLocked()
	s.lastUpdate = time.Now()
}
