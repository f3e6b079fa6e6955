package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BruksfildServices01/barber-sync/internal/domain/booking"
	"github.com/BruksfildServices01/barber-sync/internal/httperr"
	"github.com/BruksfildServices01/barber-sync/internal/httpresp"
	"github.com/BruksfildServices01/barber-sync/internal/livesync"
	"github.com/BruksfildServices01/barber-sync/internal/middleware"
)

////////////////////////////////////////////////////////
// HANDLER
////////////////////////////////////////////////////////

// LiveHandler exposes the synchronizer to staff consumers: snapshot,
// forced refresh and teardown. Synchronizers start lazily on first use.
type LiveHandler struct {
	store   booking.Store
	manager *livesync.Manager
}

func NewLiveHandler(store booking.Store, manager *livesync.Manager) *LiveHandler {
	return &LiveHandler{store: store, manager: manager}
}

////////////////////////////////////////////////////////
// SNAPSHOT / REFRESH / STOP
////////////////////////////////////////////////////////

func (h *LiveHandler) Snapshot(c *gin.Context) {
	shopID, ok := h.resolveShop(c)
	if !ok {
		return
	}

	s, err := h.manager.Get(c.Request.Context(), shopID)
	if err != nil {
		httperr.ServiceUnavailable(c, "fetch_failed", "Could not load appointments, retry shortly.")
		return
	}

	httpresp.OK(c, s.Snapshot())
}

func (h *LiveHandler) Refresh(c *gin.Context) {
	shopID, ok := h.resolveShop(c)
	if !ok {
		return
	}

	s, err := h.manager.Get(c.Request.Context(), shopID)
	if err != nil {
		httperr.ServiceUnavailable(c, "fetch_failed", "Could not load appointments, retry shortly.")
		return
	}

	if err := s.Refresh(c.Request.Context()); err != nil {
		httperr.ServiceUnavailable(c, "fetch_failed", "Refresh failed, the previous snapshot is still served.")
		return
	}

	httpresp.OK(c, s.Snapshot())
}

func (h *LiveHandler) Stop(c *gin.Context) {
	shopID, ok := h.resolveShop(c)
	if !ok {
		return
	}

	h.manager.Stop(shopID)
	c.Status(http.StatusNoContent)
}

////////////////////////////////////////////////////////
// HELPERS
////////////////////////////////////////////////////////

// resolveShop parses the :id param, checks the shop exists and that the
// caller's token belongs to it.
func (h *LiveHandler) resolveShop(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		httperr.BadRequest(c, "invalid_shop_id", "Invalid shop id.")
		return 0, false
	}
	shopID := uint(id64)

	if tokenShop, exists := c.Get(middleware.ContextBarbershopID); exists {
		if tokenShop.(uint) != shopID {
			httperr.Forbidden(c, "wrong_shop", "Token does not grant access to this shop.")
			return 0, false
		}
	}

	if _, err := h.store.GetShopByID(c.Request.Context(), shopID); err != nil {
		if httperr.IsBusiness(err, "shop_not_found") {
			httperr.NotFound(c, "shop_not_found", "Barbershop not found.")
		} else {
			httperr.Internal(c, "internal_error", "Failed to load shop.")
		}
		return 0, false
	}

	return shopID, true
}
