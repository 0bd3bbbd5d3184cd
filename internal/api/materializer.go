package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wildflourbakery/backend/order-service/internal/logging"
	"github.com/wildflourbakery/backend/order-service/internal/metrics"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

const uniqueViolation = "23505"

// HandleCheckoutWebhook turns a payment gateway confirmation into exactly one
// durable order. Redelivered confirmations resolve to the already-created
// order. Signature verification happens at the gateway edge before this
// handler is reached.
func (h *Handler) HandleCheckoutWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid payload",
			Message: "Could not read webhook body",
		})
		return
	}

	event, err := models.ParseCheckoutEvent(payload)
	if err != nil {
		logging.LogKV("error", "webhook parse failed", map[string]interface{}{"err": err.Error()})
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid payload",
			Message: err.Error(),
		})
		return
	}

	// Unhandled event types are acknowledged, not errors
	if !event.IsCheckoutCompleted() {
		metrics.WebhookIgnored.Inc()
		logging.LogKV("info", "webhook event ignored", map[string]interface{}{"type": event.Type})
		c.JSON(http.StatusOK, models.SuccessResponse{
			Message: "Event ignored",
		})
		return
	}

	conf, err := event.Data.Object.Confirmation()
	if err != nil {
		logging.LogKV("error", "webhook metadata invalid", map[string]interface{}{"err": err.Error()})
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid session metadata",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	order, replayed, err := h.materializeOrder(ctx, conf)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			metrics.StockConflicts.Inc()
		}
		// A 5xx makes the gateway redeliver; insufficient stock then becomes
		// a payment-reconciliation escalation rather than a silent partial
		// fulfillment.
		logging.LogKV("error", "order materialization failed", map[string]interface{}{
			"session_id": conf.SessionID,
			"user_id":    conf.UserID,
			"err":        err.Error(),
		})
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to materialize order",
			Message: "Internal server error",
		})
		return
	}

	if replayed {
		metrics.WebhookReplays.Inc()
		logging.LogKV("info", "duplicate confirmation replayed", map[string]interface{}{
			"session_id": conf.SessionID,
			"order_id":   order.ID,
		})
	} else {
		metrics.OrdersMaterialized.Inc()
		logging.LogKV("info", "order materialized", map[string]interface{}{
			"session_id": conf.SessionID,
			"order_id":   order.ID,
			"total":      order.TotalPrice,
		})
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Order materialized successfully",
		Data:    order,
	})
}

// findOrderBySessionID returns the order already created for an external
// checkout session, or nil when the session is unseen.
func (h *Handler) findOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var orderID int
	err := h.db.Pool.QueryRow(ctx, `
		SELECT id FROM orders WHERE stripe_session_id = $1
	`, sessionID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session %s: %w", sessionID, err)
	}

	return h.getOrderByID(ctx, orderID, nil)
}

// materializeOrder applies a payment confirmation in one transaction: order
// row, cart item reassignment, stock decrements, and the paired task either
// all commit or none do. The unique index on stripe_session_id arbitrates
// concurrent redeliveries; the loser resolves to the winner's order.
func (h *Handler) materializeOrder(ctx context.Context, conf *models.PaymentConfirmation) (*models.Order, bool, error) {
	// Fast-path replay check before doing any work
	if existing, err := h.findOrderBySessionID(ctx, conf.SessionID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, true, nil
	}

	items, err := h.getUnorderedCartItems(ctx, conf.UserID)
	if err != nil {
		return nil, false, err
	}

	draft, err := models.BuildOrderDraft(conf, items)
	if err != nil {
		return nil, false, err
	}

	tx, err := h.db.Pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var order models.Order
	orderQuery := `
		INSERT INTO orders (user_id, total_price, date, status, stripe_session_id, stripe_payment_id,
			delivery_method, payment_status, shipping_address_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, user_id, total_price, date, status, stripe_session_id, stripe_payment_id,
			delivery_method, payment_status, shipping_address_id
	`

	err = tx.QueryRow(ctx, orderQuery,
		draft.UserID,
		draft.TotalPrice,
		draft.Date,
		string(draft.Status),
		draft.StripeSessionID,
		draft.StripePaymentID,
		string(draft.DeliveryMethod),
		string(draft.PaymentStatus),
		draft.ShippingAddressID,
	).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalPrice,
		&order.Date,
		&order.Status,
		&order.StripeSessionID,
		&order.StripePaymentID,
		&order.DeliveryMethod,
		&order.PaymentStatus,
		&order.ShippingAddressID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// A concurrent redelivery won the insert race
			_ = tx.Rollback(ctx)
			existing, lookupErr := h.findOrderBySessionID(ctx, conf.SessionID)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			if existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	// Attach the cart lines. The ordered=FALSE guard means a line grabbed by
	// a concurrent materialization shows up as a count mismatch, failing the
	// whole transaction instead of double-selling.
	attach, err := tx.Exec(ctx, `
		UPDATE cart_items
		SET ordered = TRUE, order_id = $1
		WHERE id = ANY($2) AND ordered = FALSE
	`, order.ID, draft.ItemIDs)
	if err != nil {
		return nil, false, fmt.Errorf("failed to attach cart items: %w", err)
	}
	if int(attach.RowsAffected()) != len(draft.ItemIDs) {
		return nil, false, fmt.Errorf("cart items changed during materialization: attached %d of %d",
			attach.RowsAffected(), len(draft.ItemIDs))
	}

	// Decrement stock per portion. The conditional update plus the CHECK
	// constraint keeps stock from ever going below zero; losing the race for
	// the last units fails the confirmation cleanly.
	for _, dec := range draft.Decrements {
		result, err := tx.Exec(ctx, `
			UPDATE portions
			SET stock = stock - $1
			WHERE id = $2 AND stock >= $1
		`, dec.Quantity, dec.PortionID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decrement stock for portion %d: %w", dec.PortionID, err)
		}
		if result.RowsAffected() == 0 {
			return nil, false, fmt.Errorf("portion %d: %w", dec.PortionID, models.ErrInsufficientStock)
		}
	}

	// Pair the unassigned fulfillment task with the order
	var task models.Task
	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (admin_id, order_id, assigned_at, completed_at)
		VALUES (NULL, $1, NULL, NULL)
		RETURNING id, admin_id, order_id, assigned_at, completed_at
	`, order.ID).Scan(
		&task.ID,
		&task.AdminID,
		&task.OrderID,
		&task.AssignedAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create task: %w", err)
	}

	// Finalize payment inside the same transaction
	err = tx.QueryRow(ctx, `
		UPDATE orders SET payment_status = $1 WHERE id = $2
		RETURNING payment_status
	`, string(models.PaymentCompleted), order.ID).Scan(&order.PaymentStatus)
	if err != nil {
		return nil, false, fmt.Errorf("failed to finalize payment status: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Task = &task
	items, err = h.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, false, err
	}
	order.Items = items

	return &order, false, nil
}
