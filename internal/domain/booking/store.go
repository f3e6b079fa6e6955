package booking

import (
	"context"
	"time"

	"github.com/BruksfildServices01/barber-sync/internal/models"
)

// Store is the authoritative appointment ledger. Implementations must
// return business errors (httperr.BusinessError) for expected rejections:
// "shop_not_found" from the shop lookups and "slot_taken" from
// InsertAppointment when the slot was claimed concurrently.
type Store interface {
	// -------- Appointments --------

	// FetchAppointments returns every appointment for the shop ordered
	// by start time ascending.
	FetchAppointments(
		ctx context.Context,
		shopID uint,
	) ([]models.Appointment, error)

	// FindOverlapping returns confirmed or pending appointments for the
	// same (shop, barber) lane whose [start, end) interval intersects
	// the given one.
	FindOverlapping(
		ctx context.Context,
		shopID uint,
		barberID *uint,
		start time.Time,
		end time.Time,
	) ([]models.Appointment, error)

	// InsertAppointment persists a new row. The overlap condition is
	// re-checked inside the insert transaction, so a clean FindOverlapping
	// result does not guarantee success under concurrency.
	InsertAppointment(
		ctx context.Context,
		ap *models.Appointment,
	) error

	// -------- Barbershop --------

	GetShopBySlug(
		ctx context.Context,
		slug string,
	) (*models.Barbershop, error)

	GetShopByID(
		ctx context.Context,
		id uint,
	) (*models.Barbershop, error)
}
