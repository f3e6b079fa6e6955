// Package feed defines the change-feed contract between the booking store
// and open synchronizers: row-level mutation events pushed over a
// pluggable transport, scoped to one shop per subscription.
package feed

import (
	"context"
	"fmt"

	"github.com/BruksfildServices01/barber-sync/internal/models"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event carries the post-image of the row for insert/update and the
// last-known pre-image for delete.
type Event struct {
	Type EventType          `json:"type"`
	Row  models.Appointment `json:"row"`
}

// Status is what the transport reports about a subscription.
type Status string

const (
	StatusSubscribed Status = "subscribed"
	StatusError      Status = "error"
	StatusTimedOut   Status = "timed_out"
	StatusClosed     Status = "closed"
)

type Subscription interface {
	Unsubscribe()
}

// Transport delivers feed events for one shop. Implementations must only
// deliver events for the subscribed shop; the synchronizer still filters
// defensively so the design is not coupled to channel naming.
type Transport interface {
	Subscribe(
		ctx context.Context,
		shopID uint,
		onEvent func(Event),
		onStatus func(Status),
	) (Subscription, error)
}

// Publisher is the store-side half: every committed row mutation is
// published so open synchronizers converge without polling.
type Publisher interface {
	Publish(ctx context.Context, shopID uint, ev Event) error
}

// Bus is a transport that can also publish, which is what the wiring in
// routes expects from a concrete backend.
type Bus interface {
	Transport
	Publisher
}

// Channel names the per-shop feed channel / routing key. Scoping is still
// enforced per event by the synchronizer.
func Channel(shopID uint) string {
	return fmt.Sprintf("shop.%d.appointments", shopID)
}
