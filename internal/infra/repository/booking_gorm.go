package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BruksfildServices01/barber-sync/internal/domain/booking"
	"github.com/BruksfildServices01/barber-sync/internal/feed"
	"github.com/BruksfildServices01/barber-sync/internal/httperr"
	"github.com/BruksfildServices01/barber-sync/internal/models"
)

type BookingGormRepository struct {
	db        *gorm.DB
	publisher feed.Publisher
	log       *logrus.Entry
}

func NewBookingGormRepository(db *gorm.DB, publisher feed.Publisher) *BookingGormRepository {
	return &BookingGormRepository{
		db:        db,
		publisher: publisher,
		log:       logrus.WithField("component", "repository"),
	}
}

// --------------------------------------------------
// Appointments
// --------------------------------------------------

func (r *BookingGormRepository) FetchAppointments(
	ctx context.Context,
	shopID uint,
) ([]models.Appointment, error) {

	var apps []models.Appointment
	if err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("start_time ASC").
		Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *BookingGormRepository) FindOverlapping(
	ctx context.Context,
	shopID uint,
	barberID *uint,
	start time.Time,
	end time.Time,
) ([]models.Appointment, error) {

	var apps []models.Appointment
	q := overlapQuery(r.db.WithContext(ctx), shopID, barberID, start, end)
	if err := q.Order("start_time ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// InsertAppointment re-runs the overlap count inside one transaction
// with the matching rows locked, then creates the row. Two concurrent
// inserts for the same slot serialize here; the loser gets slot_taken.
func (r *BookingGormRepository) InsertAppointment(
	ctx context.Context,
	ap *models.Appointment,
) error {

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		q := overlapQuery(tx.Model(&models.Appointment{}), ap.ShopID, ap.BarberID, ap.StartTime, ap.EndTime)
		if err := q.Clauses(clause.Locking{Strength: "UPDATE"}).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return httperr.ErrBusiness("slot_taken")
		}
		return tx.Create(ap).Error
	})
	if err != nil {
		return err
	}

	// The committed row fans out to open synchronizers through the feed.
	// A publish failure is not an insert failure; reconnecting
	// synchronizers resync in full anyway.
	if err := r.publisher.Publish(ctx, ap.ShopID, feed.Event{
		Type: feed.EventInsert,
		Row:  *ap,
	}); err != nil {
		r.log.WithError(err).WithField("appointment_id", ap.ID).
			Warn("feed publish failed")
	}

	return nil
}

func overlapQuery(q *gorm.DB, shopID uint, barberID *uint, start, end time.Time) *gorm.DB {
	q = q.Where(
		"shop_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
		shopID, booking.ActiveStatuses(), end, start,
	)
	if barberID != nil {
		return q.Where("barber_id = ?", *barberID)
	}
	return q.Where("barber_id IS NULL")
}

// --------------------------------------------------
// Barbershop
// --------------------------------------------------

func (r *BookingGormRepository) GetShopBySlug(
	ctx context.Context,
	slug string,
) (*models.Barbershop, error) {

	var shop models.Barbershop
	if err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httperr.ErrBusiness("shop_not_found")
		}
		return nil, err
	}
	return &shop, nil
}

func (r *BookingGormRepository) GetShopByID(
	ctx context.Context,
	id uint,
) (*models.Barbershop, error) {

	var shop models.Barbershop
	if err := r.db.WithContext(ctx).First(&shop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httperr.ErrBusiness("shop_not_found")
		}
		return nil, err
	}
	return &shop, nil
}

// Compile-time check
var _ booking.Store = (*BookingGormRepository)(nil)
