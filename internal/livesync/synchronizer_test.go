package livesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BruksfildServices01/barber-sync/internal/feed"
	"github.com/BruksfildServices01/barber-sync/internal/httperr"
	"github.com/BruksfildServices01/barber-sync/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	rows    []models.Appointment
	err     error
	fetches int
}

func (f *fakeStore) FetchAppointments(ctx context.Context, shopID uint) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Appointment, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeStore) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func testOptions() Options {
	return Options{
		FetchTimeout:   time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}
}

func appt(id string, shopID uint, start time.Time, status string) models.Appointment {
	return models.Appointment{ID: id, ShopID: shopID, StartTime: start, Status: status}
}

func startSynchronizer(t *testing.T, shopID uint, store *fakeStore, tr *feed.MemoryTransport) *Synchronizer {
	t.Helper()
	s := New(shopID, store, tr, testOptions())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s
}

func TestStartSeedsCacheAndGoesLive(t *testing.T) {
	base := time.Now()
	store := &fakeStore{rows: []models.Appointment{
		appt("B", 1, base.Add(time.Hour), "confirmed"),
		appt("A", 1, base, "pending"),
	}}
	tr := feed.NewMemoryTransport()

	s := startSynchronizer(t, 1, store, tr)

	view := s.Snapshot()
	require.Len(t, view.Appointments, 2)
	assert.Equal(t, "A", view.Appointments[0].ID)
	assert.Equal(t, "B", view.Appointments[1].ID)
	assert.Equal(t, StateLive, view.Status)
	assert.Equal(t, 1, store.fetchCount())
}

func TestStartFetchFailureOpensNoSubscription(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	tr := feed.NewMemoryTransport()

	s := New(1, store, tr, testOptions())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, httperr.IsBusiness(err, "fetch_failed"))
	assert.Equal(t, 0, tr.SubscriberCount(1))
	s.Stop()
}

func TestInsertIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	ev := feed.Event{Type: feed.EventInsert, Row: appt("A1", 1, time.Now(), "pending")}
	require.NoError(t, tr.Publish(context.Background(), 1, ev))
	once := s.Snapshot().Appointments

	require.NoError(t, tr.Publish(context.Background(), 1, ev))
	twice := s.Snapshot().Appointments

	assert.Equal(t, once, twice)
	require.Len(t, twice, 1)
}

func TestUpdateForUnknownIDSelfHeals(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	ev := feed.Event{Type: feed.EventUpdate, Row: appt("ghost", 1, time.Now(), "confirmed")}
	require.NoError(t, tr.Publish(context.Background(), 1, ev))

	view := s.Snapshot()
	require.Len(t, view.Appointments, 1)
	assert.Equal(t, "ghost", view.Appointments[0].ID)
	assert.Equal(t, uint64(1), view.Counters.Updates)
}

func TestDeleteUnknownIDIsNoOp(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	ev := feed.Event{Type: feed.EventDelete, Row: appt("nope", 1, time.Now(), "cancelled")}
	require.NoError(t, tr.Publish(context.Background(), 1, ev))

	assert.Empty(t, s.Snapshot().Appointments)
}

func TestCacheStaysSortedByStartTime(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	base := time.Now()
	ctx := context.Background()
	for _, ev := range []feed.Event{
		{Type: feed.EventInsert, Row: appt("C", 1, base.Add(2*time.Hour), "pending")},
		{Type: feed.EventInsert, Row: appt("A", 1, base, "pending")},
		{Type: feed.EventInsert, Row: appt("B", 1, base.Add(time.Hour), "pending")},
	} {
		require.NoError(t, tr.Publish(ctx, 1, ev))
	}

	// Rescheduling C before A must re-establish the order.
	moved := appt("C", 1, base.Add(-time.Hour), "pending")
	require.NoError(t, tr.Publish(ctx, 1, feed.Event{Type: feed.EventUpdate, Row: moved}))

	view := s.Snapshot()
	require.Len(t, view.Appointments, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{
		view.Appointments[0].ID,
		view.Appointments[1].ID,
		view.Appointments[2].ID,
	})
}

func TestNoCrossShopLeakage(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	// Even if the transport misroutes a shop-2 event onto shop 1's
	// channel, the cache must reject it.
	require.NoError(t, tr.Publish(context.Background(), 1, feed.Event{
		Type: feed.EventInsert,
		Row:  appt("other", 2, time.Now(), "pending"),
	}))

	view := s.Snapshot()
	assert.Empty(t, view.Appointments)
	assert.Equal(t, uint64(0), view.Counters.Inserts)
}

func TestInsertUpdateDeleteLifecycle(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	ctx := context.Background()
	row := appt("A1", 1, time.Now(), "pending")

	require.NoError(t, tr.Publish(ctx, 1, feed.Event{Type: feed.EventInsert, Row: row}))
	view := s.Snapshot()
	require.Len(t, view.Appointments, 1)
	assert.Equal(t, "pending", view.Appointments[0].Status)

	row.Status = "confirmed"
	require.NoError(t, tr.Publish(ctx, 1, feed.Event{Type: feed.EventUpdate, Row: row}))
	view = s.Snapshot()
	require.Len(t, view.Appointments, 1)
	assert.Equal(t, "confirmed", view.Appointments[0].Status)

	require.NoError(t, tr.Publish(ctx, 1, feed.Event{Type: feed.EventDelete, Row: row}))
	view = s.Snapshot()
	assert.Empty(t, view.Appointments)

	assert.Equal(t, Counters{Inserts: 1, Updates: 1, Deletes: 1}, view.Counters)
}

func TestReconnectTriggersExactlyOneRefresh(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	// The first Live came from Start's fetch; no refresh yet.
	assert.Equal(t, 1, store.fetchCount())

	tr.EmitStatus(1, feed.StatusError)
	require.Eventually(t, func() bool {
		return s.Snapshot().Status == StateLive && store.fetchCount() == 2
	}, time.Second, time.Millisecond)

	// Exactly one full fetch after the second Live transition.
	assert.Equal(t, 2, store.fetchCount())
}

func TestRefreshFailureKeepsPreviousCache(t *testing.T) {
	store := &fakeStore{rows: []models.Appointment{appt("A", 1, time.Now(), "pending")}}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	store.mu.Lock()
	store.err = errors.New("db down")
	store.mu.Unlock()

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, httperr.IsBusiness(err, "fetch_failed"))
	assert.Len(t, s.Snapshot().Appointments, 1)
}

func TestStopFreezesCacheAgainstLateEvents(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	s := startSynchronizer(t, 1, store, tr)

	s.Stop()
	s.Stop() // idempotent

	require.NoError(t, tr.Publish(context.Background(), 1, feed.Event{
		Type: feed.EventInsert,
		Row:  appt("late", 1, time.Now(), "pending"),
	}))

	view := s.Snapshot()
	assert.Empty(t, view.Appointments)
	assert.Equal(t, StateClosed, view.Status)
	assert.Equal(t, 0, tr.SubscriberCount(1))
}

func TestManagerReusesSynchronizerPerShop(t *testing.T) {
	store := &fakeStore{}
	tr := feed.NewMemoryTransport()
	m := NewManager(store, tr, testOptions())
	defer m.StopAll()

	a, err := m.Get(context.Background(), 1)
	require.NoError(t, err)
	b, err := m.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, store.fetchCount())

	m.Stop(1)
	assert.Equal(t, StateClosed, a.Snapshot().Status)
}
