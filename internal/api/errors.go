package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

// respondError translates the three caller-distinguishable failure classes
// into HTTP status codes: validation 400, permission 403, not-found 404.
// Everything else is an opaque internal failure.
func respondError(c *gin.Context, title string, err error) {
	switch {
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   title,
			Message: err.Error(),
		})
	case models.IsPermission(err):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   title,
			Message: err.Error(),
		})
	case models.IsNotFound(err):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   title,
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   title,
			Message: "Internal server error",
		})
	}
}
