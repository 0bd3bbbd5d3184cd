package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wildflourbakery/backend/order-service/internal/db"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

// Handler holds the database connection and provides HTTP handlers
type Handler struct {
	db *db.Database
}

// NewHandler creates a new handler instance
func NewHandler(database *db.Database) *Handler {
	return &Handler{
		db: database,
	}
}

// Health checks the health of the service
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Database connection failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "order-service",
		"timestamp": time.Now().UTC(),
	})
}

// GetCart retrieves the user's live (unordered) cart items
func (h *Handler) GetCart(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract user ID from token",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := h.getUnorderedCartItems(ctx, userID)
	if err != nil {
		respondError(c, "Failed to get cart items", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Cart retrieved successfully",
		Data: gin.H{
			"items": items,
			"total": models.CartTotal(items),
		},
	})
}

// AddToCart adds a product portion to the user's cart
func (h *Handler) AddToCart(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract user ID from token",
		})
		return
	}

	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	item, err := h.addItemToCart(ctx, userID, req.ProductID, req.PortionID, req.Quantity)
	if err != nil {
		respondError(c, "Failed to add item to cart", err)
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Message: "Item added to cart successfully",
		Data:    item,
	})
}

// UpdateCartItem updates the quantity of a live cart item. Quantity zero
// removes the item, matching the storefront's stepper behavior.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract user ID from token",
		})
		return
	}

	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid cart item ID",
			Message: "Cart item ID must be an integer",
		})
		return
	}

	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if req.Quantity == 0 {
		if err := h.removeCartItem(ctx, userID, itemID); err != nil {
			respondError(c, "Failed to remove cart item", err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse{
			Message: "Item removed from cart successfully",
		})
		return
	}

	item, err := h.updateCartItemQuantity(ctx, userID, itemID, req.Quantity)
	if err != nil {
		respondError(c, "Failed to update cart item", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Cart item updated successfully",
		Data:    item,
	})
}

// RemoveFromCart removes a live cart item
func (h *Handler) RemoveFromCart(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract user ID from token",
		})
		return
	}

	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid cart item ID",
			Message: "Cart item ID must be an integer",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.removeCartItem(ctx, userID, itemID); err != nil {
		respondError(c, "Failed to remove cart item", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Item removed from cart successfully",
	})
}

// GetOrders retrieves the user's order history. With recent=true only the
// three latest orders come back, unpaginated.
func (h *Handler) GetOrders(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract user ID from token",
		})
		return
	}

	var req models.OrderListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid query parameters",
			Message: err.Error(),
		})
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if req.Recent {
		orders, err := h.getRecentOrders(ctx, userID, 3)
		if err != nil {
			respondError(c, "Failed to get orders", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
		return
	}

	resp, err := h.getUserOrders(ctx, userID, req.Page, 10)
	if err != nil {
		respondError(c, "Failed to get orders", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetOrder retrieves a specific order by ID for its owner
func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract user ID from token",
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

	order, err := h.getOrderByID(ctx, orderID, &userID)
	if err != nil {
		respondError(c, "Failed to get order", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Order retrieved successfully",
		Data:    order,
	})
}

// SetPortionStock sets a portion's stock to an exact value (admin restock)
func (h *Handler) SetPortionStock(c *gin.Context) {
	portionID, err := strconv.Atoi(c.Param("portion_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid portion ID",
			Message: "Portion ID must be an integer",
		})
		return
	}

	var req models.SetPortionStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	portion, err := h.setPortionStock(ctx, portionID, req.Stock)
	if err != nil {
		respondError(c, "Failed to set portion stock", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Portion stock updated successfully",
		Data:    portion,
	})
}
