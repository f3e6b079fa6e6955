package livesync

import (
	"context"
	"sync"

	"github.com/BruksfildServices01/barber-sync/internal/feed"
)

// Manager hands out at most one running Synchronizer per shop and owns
// their shutdown.
type Manager struct {
	store     Fetcher
	transport feed.Transport
	opts      Options

	mu    sync.Mutex
	syncs map[uint]*Synchronizer
}

func NewManager(store Fetcher, transport feed.Transport, opts Options) *Manager {
	return &Manager{
		store:     store,
		transport: transport,
		opts:      opts,
		syncs:     make(map[uint]*Synchronizer),
	}
}

// Get returns the shop's synchronizer, starting one on first use. A
// failed start leaves nothing registered, so the caller can retry.
func (m *Manager) Get(ctx context.Context, shopID uint) (*Synchronizer, error) {
	m.mu.Lock()
	if s, ok := m.syncs[shopID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s := New(shopID, m.store, m.transport, m.opts)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.syncs[shopID]; ok {
		// Lost the race against a concurrent Get for the same shop.
		m.mu.Unlock()
		s.Stop()
		return existing, nil
	}
	m.syncs[shopID] = s
	m.mu.Unlock()
	return s, nil
}

// Stop tears down the shop's synchronizer if one is running.
func (m *Manager) Stop(shopID uint) {
	m.mu.Lock()
	s, ok := m.syncs[shopID]
	delete(m.syncs, shopID)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	syncs := m.syncs
	m.syncs = make(map[uint]*Synchronizer)
	m.mu.Unlock()
	for _, s := range syncs {
		s.Stop()
	}
}
