package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wildflourbakery/backend/order-service/internal/logging"
	"github.com/wildflourbakery/backend/order-service/internal/metrics"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

// StartOrders claims a batch of pending orders for the requesting admin and
// moves them to IN_PROGRESS. The batch either fully succeeds or leaves every
// order untouched.
func (h *Handler) StartOrders(c *gin.Context) {
	adminID, ok := GetAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid admin",
			Message: "Could not extract admin ID from token",
		})
		return
	}

	var req models.StartOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	started, err := h.startOrders(ctx, adminID, req.OrderIDs)
	if err != nil {
		metrics.FulfillmentTransitions.WithLabelValues("start", "rejected").Inc()
		respondError(c, "Failed to start orders", err)
		return
	}

	metrics.FulfillmentTransitions.WithLabelValues("start", "ok").Inc()
	logging.LogKV("info", "orders started", map[string]interface{}{
		"admin_id":  adminID,
		"order_ids": req.OrderIDs,
	})

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Orders started successfully",
		Data:    started,
	})
}

// ReturnOrderToPending releases an in-progress order back to the pending
// queue. Only the assigned admin may return it.
func (h *Handler) ReturnOrderToPending(c *gin.Context) {
	adminID, ok := GetAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid admin",
			Message: "Could not extract admin ID from token",
		})
		return
	}

	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be an integer",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, err := h.returnOrderToPending(ctx, adminID, orderID)
	if err != nil {
		metrics.FulfillmentTransitions.WithLabelValues("return", "rejected").Inc()
		respondError(c, "Failed to return order", err)
		return
	}

	metrics.FulfillmentTransitions.WithLabelValues("return", "ok").Inc()
	logging.LogKV("info", "order returned to pending", map[string]interface{}{
		"admin_id": adminID,
		"order_id": orderID,
	})

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Order returned to pending successfully",
		Data:    order,
	})
}

// CompleteOrder marks an in-progress order as completed. Only the assigned
// admin may complete it.
func (h *Handler) CompleteOrder(c *gin.Context) {
	adminID, ok := GetAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid admin",
			Message: "Could not extract admin ID from token",
		})
		return
	}

	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be an integer",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, err := h.completeOrder(ctx, adminID, orderID)
	if err != nil {
		metrics.FulfillmentTransitions.WithLabelValues("complete", "rejected").Inc()
		respondError(c, "Failed to complete order", err)
		return
	}

	metrics.FulfillmentTransitions.WithLabelValues("complete", "ok").Inc()
	logging.LogKV("info", "order completed", map[string]interface{}{
		"admin_id": adminID,
		"order_id": orderID,
	})

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Order completed successfully",
		Data:    order,
	})
}

// GetPendingOrders lists the pending fulfillment queue
func (h *Handler) GetPendingOrders(c *gin.Context) {
	h.listFulfillmentQueue(c, models.OrderPending)
}

// GetInProgressOrders lists orders currently being worked on
func (h *Handler) GetInProgressOrders(c *gin.Context) {
	h.listFulfillmentQueue(c, models.OrderInProgress)
}

func (h *Handler) listFulfillmentQueue(c *gin.Context, status models.OrderStatus) {
	var req models.FulfillmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid query parameters",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := h.listFulfillmentOrders(ctx, status, req)
	if err != nil {
		respondError(c, "Failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Orders retrieved successfully",
		Data:    resp,
	})
}
