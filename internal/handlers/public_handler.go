package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/BruksfildServices01/barber-sync/internal/guard"
	"github.com/BruksfildServices01/barber-sync/internal/httperr"
)

////////////////////////////////////////////////////////
// HANDLER
////////////////////////////////////////////////////////

type PublicHandler struct {
	guard *guard.Guard
	log   *logrus.Entry
}

func NewPublicHandler(g *guard.Guard) *PublicHandler {
	return &PublicHandler{
		guard: g,
		log:   logrus.WithField("component", "public_handler"),
	}
}

////////////////////////////////////////////////////////
// DTOs
////////////////////////////////////////////////////////

type PublicCreateAppointmentRequest struct {
	BarberID        *uint  `json:"barber_id"`
	ServiceID       uint   `json:"service_id" binding:"required"`
	StartTime       string `json:"start_time" binding:"required"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerPhone   string `json:"customer_phone" binding:"required"`
	CustomerEmail   string `json:"customer_email"`
}

////////////////////////////////////////////////////////
// CREATE APPOINTMENT
////////////////////////////////////////////////////////

func (h *PublicHandler) CreateAppointment(c *gin.Context) {
	slug := c.Param("slug")

	var req PublicCreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "validation_failed", "Invalid request payload.")
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		httperr.BadRequest(c, "validation_failed", "start_time must be RFC 3339.")
		return
	}

	ap, err := h.guard.Admit(c.Request.Context(), guard.Request{
		ShopSlug:        slug,
		OriginKey:       c.ClientIP(),
		BarberID:        req.BarberID,
		ServiceID:       req.ServiceID,
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
	})
	if err != nil {
		h.mapAdmitError(c, err)
		return
	}

	c.JSON(http.StatusOK, ap)
}

// Rejections are expected outcomes, not faults; only the fallthrough is
// logged at error level.
func (h *PublicHandler) mapAdmitError(c *gin.Context, err error) {
	switch {
	case httperr.IsBusiness(err, "validation_failed"):
		httperr.BadRequest(c, "validation_failed", "Invalid booking request.")
	case httperr.IsBusiness(err, "too_soon"):
		httperr.BadRequest(c, "too_soon", "Bookings need more advance notice.")
	case httperr.IsBusiness(err, "shop_not_found"):
		httperr.NotFound(c, "shop_not_found", "Barbershop not found.")
	case httperr.IsBusiness(err, "public_booking_disabled"):
		httperr.Forbidden(c, "public_booking_disabled", "This shop does not accept online bookings.")
	case httperr.IsBusiness(err, "slot_taken"):
		httperr.Conflict(c, "slot_taken", "The requested time slot is no longer available.")
	case httperr.IsBusiness(err, "rate_limited"):
		httperr.TooManyRequests(c, "rate_limited", "Too many booking attempts, try again later.")
	default:
		h.log.WithError(err).Error("booking admission failed unexpectedly")
		httperr.Internal(c, "internal_error", "Failed to create booking.")
	}
}
