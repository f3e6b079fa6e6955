// Package httpresp holds the success-side response helpers; error bodies
// live in httperr.
package httpresp

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
