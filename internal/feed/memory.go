package feed

import (
	"context"
	"sync"
)

// MemoryTransport is an in-process bus for local development and tests.
// Delivery is synchronous and in publish order.
type MemoryTransport struct {
	mu   sync.Mutex
	subs map[uint][]*memorySubscription

	// SubscribeErr, when set, makes the next Subscribe call fail.
	SubscribeErr error

	// StatusAfterSubscribe, when set, is emitted once to the next
	// subscriber right after StatusSubscribed, before Subscribe returns.
	// Tests use it to fault a subscription before the caller holds it.
	StatusAfterSubscribe Status
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subs: make(map[uint][]*memorySubscription)}
}

func (t *MemoryTransport) Subscribe(
	ctx context.Context,
	shopID uint,
	onEvent func(Event),
	onStatus func(Status),
) (Subscription, error) {

	t.mu.Lock()
	if err := t.SubscribeErr; err != nil {
		t.SubscribeErr = nil
		t.mu.Unlock()
		return nil, err
	}
	sub := &memorySubscription{
		transport: t,
		shopID:    shopID,
		onEvent:   onEvent,
		onStatus:  onStatus,
	}
	t.subs[shopID] = append(t.subs[shopID], sub)
	followup := t.StatusAfterSubscribe
	t.StatusAfterSubscribe = ""
	t.mu.Unlock()

	onStatus(StatusSubscribed)
	if followup != "" {
		onStatus(followup)
	}
	return sub, nil
}

func (t *MemoryTransport) Publish(ctx context.Context, shopID uint, ev Event) error {
	for _, sub := range t.snapshot(shopID) {
		sub.onEvent(ev)
	}
	return nil
}

// EmitStatus pushes a transport status to every subscriber of the shop.
// Tests use it to walk the reconnection state machine.
func (t *MemoryTransport) EmitStatus(shopID uint, st Status) {
	for _, sub := range t.snapshot(shopID) {
		sub.onStatus(st)
	}
}

// SubscriberCount reports how many live subscriptions the shop has.
func (t *MemoryTransport) SubscriberCount(shopID uint) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[shopID])
}

// Callbacks run outside the transport lock so a subscriber may
// unsubscribe from within one.
func (t *MemoryTransport) snapshot(shopID uint) []*memorySubscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*memorySubscription, len(t.subs[shopID]))
	copy(out, t.subs[shopID])
	return out
}

func (t *MemoryTransport) remove(sub *memorySubscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.subs[sub.shopID]
	for i, s := range list {
		if s == sub {
			t.subs[sub.shopID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

type memorySubscription struct {
	transport *MemoryTransport
	shopID    uint
	onEvent   func(Event)
	onStatus  func(Status)
}

func (s *memorySubscription) Unsubscribe() {
	s.transport.remove(s)
}

var _ Bus = (*MemoryTransport)(nil)
