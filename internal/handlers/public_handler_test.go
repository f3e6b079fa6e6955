package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BruksfildServices01/barber-sync/internal/guard"
	"github.com/BruksfildServices01/barber-sync/internal/httperr"
	"github.com/BruksfildServices01/barber-sync/internal/models"
)

////////////////////////////////////////////////////////
// FAKES
////////////////////////////////////////////////////////

type fakeStore struct {
	shops    map[string]*models.Barbershop
	existing []models.Appointment
	inserted []*models.Appointment
}

func (f *fakeStore) FetchAppointments(ctx context.Context, shopID uint) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, ap := range f.existing {
		if ap.ShopID == shopID {
			out = append(out, ap)
		}
	}
	return out, nil
}

func (f *fakeStore) FindOverlapping(ctx context.Context, shopID uint, barberID *uint, start, end time.Time) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, ap := range f.existing {
		if ap.ShopID == shopID && ap.StartTime.Before(end) && ap.EndTime.After(start) {
			out = append(out, ap)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertAppointment(ctx context.Context, ap *models.Appointment) error {
	f.inserted = append(f.inserted, ap)
	return nil
}

func (f *fakeStore) GetShopBySlug(ctx context.Context, slug string) (*models.Barbershop, error) {
	if shop, ok := f.shops[slug]; ok {
		return shop, nil
	}
	return nil, httperr.ErrBusiness("shop_not_found")
}

func (f *fakeStore) GetShopByID(ctx context.Context, id uint) (*models.Barbershop, error) {
	for _, shop := range f.shops {
		if shop.ID == id {
			return shop, nil
		}
	}
	return nil, httperr.ErrBusiness("shop_not_found")
}

type fakeLimiter struct{ allow bool }

func (f *fakeLimiter) Allow(ctx context.Context, originKey string) (bool, error) {
	return f.allow, nil
}

////////////////////////////////////////////////////////
// HELPERS
////////////////////////////////////////////////////////

func newPublicRouter(store *fakeStore, allow bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := guard.New(store, &fakeLimiter{allow: allow})
	h := NewPublicHandler(g)

	r := gin.New()
	r.POST("/api/public/:slug/appointments", h.CreateAppointment)
	return r
}

func bookingShop() *fakeStore {
	return &fakeStore{
		shops: map[string]*models.Barbershop{
			"corner-cuts": {
				ID:                   1,
				Slug:                 "corner-cuts",
				MinAdvanceMinutes:    120,
				PublicBookingEnabled: true,
			},
		},
	}
}

func bookingPayload(start time.Time) string {
	return fmt.Sprintf(`{
		"service_id": 3,
		"start_time": %q,
		"duration_minutes": 30,
		"customer_name": "Ana",
		"customer_phone": "+55 11 91234-5678",
		"customer_email": "ana@example.com"
	}`, start.Format(time.RFC3339))
}

func postBooking(r *gin.Engine, slug, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/public/"+slug+"/appointments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body httperr.HTTPError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

////////////////////////////////////////////////////////
// TESTS
////////////////////////////////////////////////////////

func TestPublicCreateSucceeds(t *testing.T) {
	store := bookingShop()
	r := newPublicRouter(store, true)

	w := postBooking(r, "corner-cuts", bookingPayload(time.Now().Add(24*time.Hour)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ap models.Appointment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ap))
	assert.NotEmpty(t, ap.ID)
	assert.Equal(t, "pending", ap.Status)
	require.Len(t, store.inserted, 1)
}

func TestPublicCreateValidationErrors(t *testing.T) {
	r := newPublicRouter(bookingShop(), true)

	w := postBooking(r, "corner-cuts", `{"service_id": 3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", errorCode(t, w))

	start := time.Now().Add(24 * time.Hour)
	w = postBooking(r, "corner-cuts", strings.Replace(
		bookingPayload(start), start.Format(time.RFC3339), "tomorrow at ten", 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", errorCode(t, w))
}

func TestPublicCreateUnknownShopIs404(t *testing.T) {
	r := newPublicRouter(bookingShop(), true)

	w := postBooking(r, "no-such-shop", bookingPayload(time.Now().Add(24*time.Hour)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "shop_not_found", errorCode(t, w))
}

func TestPublicCreateDisabledShopIs403(t *testing.T) {
	store := bookingShop()
	store.shops["corner-cuts"].PublicBookingEnabled = false
	r := newPublicRouter(store, true)

	w := postBooking(r, "corner-cuts", bookingPayload(time.Now().Add(24*time.Hour)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "public_booking_disabled", errorCode(t, w))
}

func TestPublicCreateTakenSlotIs409(t *testing.T) {
	store := bookingShop()
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	store.existing = []models.Appointment{{
		ID:        "existing",
		ShopID:    1,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Status:    "confirmed",
	}}
	r := newPublicRouter(store, true)

	w := postBooking(r, "corner-cuts", bookingPayload(start.Add(15*time.Minute)))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "slot_taken", errorCode(t, w))
}

func TestPublicCreateRateLimitedIs429(t *testing.T) {
	r := newPublicRouter(bookingShop(), false)

	w := postBooking(r, "corner-cuts", bookingPayload(time.Now().Add(24*time.Hour)))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", errorCode(t, w))
}

func TestPublicCreateTooSoonIs400(t *testing.T) {
	r := newPublicRouter(bookingShop(), true)

	w := postBooking(r, "corner-cuts", bookingPayload(time.Now().Add(10*time.Minute)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "too_soon", errorCode(t, w))
}
