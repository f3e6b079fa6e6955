// Package guard is the admission pipeline in front of the booking store:
// every untrusted public create request passes shape validation, the
// origin rate limit, target validation and the overlap check before a
// row is written.
package guard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BruksfildServices01/barber-sync/internal/domain/booking"
	"github.com/BruksfildServices01/barber-sync/internal/httperr"
	"github.com/BruksfildServices01/barber-sync/internal/models"
	"github.com/BruksfildServices01/barber-sync/internal/ratelimit"
	"github.com/BruksfildServices01/barber-sync/internal/validators"
)

// Request is one inbound public booking attempt.
type Request struct {
	ShopSlug  string
	OriginKey string

	BarberID        *uint
	ServiceID       uint
	StartTime       time.Time
	DurationMinutes int

	CustomerName  string
	CustomerPhone string
	CustomerEmail string
}

type Guard struct {
	store   booking.Store
	limiter ratelimit.Limiter
	log     *logrus.Entry
	now     func() time.Time
}

func New(store booking.Store, limiter ratelimit.Limiter) *Guard {
	return &Guard{
		store:   store,
		limiter: limiter,
		log:     logrus.WithField("component", "guard"),
		now:     time.Now,
	}
}

// Admit runs the full pipeline and, on success, performs the insert and
// returns the created row. Rejections come back as BusinessError codes:
// validation_failed, rate_limited, shop_not_found,
// public_booking_disabled, too_soon, slot_taken. The guard never notifies
// synchronizers itself; propagation happens only through the store's
// change feed.
func (g *Guard) Admit(ctx context.Context, req Request) (*models.Appointment, error) {

	// 1. Shape validation. Malformed payloads fail before the rate
	// limit so probing with garbage does not spend quota.
	if err := validateShape(req); err != nil {
		return nil, err
	}

	// 2. Rate limit, scoped to the origin, not the shop. The attempt
	// counts against quota even if a later step rejects it.
	allowed, err := g.limiter.Allow(ctx, req.OriginKey)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, httperr.ErrBusiness("rate_limited")
	}

	// 3. Target validation.
	shop, err := g.store.GetShopBySlug(ctx, req.ShopSlug)
	if err != nil {
		return nil, err
	}
	if !shop.PublicBookingEnabled {
		return nil, httperr.ErrBusiness("public_booking_disabled")
	}

	minAdvance := shop.MinAdvanceMinutes
	if minAdvance <= 0 {
		minAdvance = 120
	}
	if req.StartTime.Before(g.now().Add(time.Duration(minAdvance) * time.Minute)) {
		return nil, httperr.ErrBusiness("too_soon")
	}

	// 4. Overlap check. Read-only fast fail; the insert below re-checks
	// under a row lock, so a concurrent winner still loses here.
	end := req.StartTime.Add(time.Duration(req.DurationMinutes) * time.Minute)
	overlapping, err := g.store.FindOverlapping(ctx, shop.ID, req.BarberID, req.StartTime, end)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, httperr.ErrBusiness("slot_taken")
	}

	// 5. Insert. The store publishes the insert event to the feed.
	ap := &models.Appointment{
		ID:            uuid.NewString(),
		ShopID:        shop.ID,
		BarberID:      req.BarberID,
		ServiceID:     req.ServiceID,
		StartTime:     req.StartTime,
		EndTime:       end,
		Status:        string(booking.InitialStatus()),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
	}
	if err := g.store.InsertAppointment(ctx, ap); err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"shop_id":        shop.ID,
		"appointment_id": ap.ID,
	}).Info("booking admitted")

	return ap, nil
}

func validateShape(req Request) error {
	switch {
	case req.ShopSlug == "",
		req.ServiceID == 0,
		req.StartTime.IsZero(),
		req.DurationMinutes <= 0,
		req.CustomerName == "",
		req.CustomerPhone == "":
		return httperr.ErrBusiness("validation_failed")
	}
	if !validators.IsPhoneValid(req.CustomerPhone) {
		return httperr.ErrBusiness("validation_failed")
	}
	if req.CustomerEmail != "" && !validators.IsEmailValid(req.CustomerEmail) {
		return httperr.ErrBusiness("validation_failed")
	}
	return nil
}
