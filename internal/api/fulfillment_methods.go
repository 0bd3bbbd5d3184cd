package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

const fulfillmentPageSize = 50

// lockOrderAndTask reads an order with its task under FOR UPDATE so the admin
// workflow transitions serialize per order.
func lockOrderAndTask(ctx context.Context, tx pgx.Tx, orderID int) (*models.Order, *models.Task, error) {
	var order models.Order
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, total_price, date, status, stripe_session_id, stripe_payment_id,
			delivery_method, payment_status, shipping_address_id
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(
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
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}

	var task models.Task
	err = tx.QueryRow(ctx, `
		SELECT id, admin_id, order_id, assigned_at, completed_at
		FROM tasks
		WHERE order_id = $1
		FOR UPDATE
	`, orderID).Scan(
		&task.ID,
		&task.AdminID,
		&task.OrderID,
		&task.AssignedAt,
		&task.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("order %d has no fulfillment task", orderID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock task for order %d: %w", orderID, err)
	}

	order.Task = &task
	return &order, &task, nil
}

// startOrders claims a batch of pending orders for one admin. The batch is
// all-or-nothing: if any order is not PENDING, or its task is already held by
// another admin, the whole transaction rolls back and no order changes.
func (h *Handler) startOrders(ctx context.Context, adminID int, orderIDs []int) ([]models.Order, error) {
	tx, err := h.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	started := make([]models.Order, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		order, task, err := lockOrderAndTask(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}

		if !order.Status.CanTransition(models.OrderInProgress) {
			return nil, fmt.Errorf("order %d: %w", orderID, models.ErrOrderNotPending)
		}
		if !task.AssignAdmin(adminID) {
			return nil, fmt.Errorf("order %d: %w", orderID, models.ErrTaskAlreadyAssigned)
		}

		// The admin_id IS NULL guard backstops the in-memory check against a
		// claim committed between our snapshot and the lock.
		result, err := tx.Exec(ctx, `
			UPDATE tasks
			SET admin_id = $1, assigned_at = $2
			WHERE order_id = $3 AND admin_id IS NULL
		`, adminID, task.AssignedAt, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to assign task for order %d: %w", orderID, err)
		}
		if result.RowsAffected() == 0 {
			return nil, fmt.Errorf("order %d: %w", orderID, models.ErrTaskAlreadyAssigned)
		}

		result, err = tx.Exec(ctx, `
			UPDATE orders
			SET status = $1
			WHERE id = $2 AND status = $3
		`, string(models.OrderInProgress), orderID, string(models.OrderPending))
		if err != nil {
			return nil, fmt.Errorf("failed to start order %d: %w", orderID, err)
		}
		if result.RowsAffected() == 0 {
			return nil, fmt.Errorf("order %d: %w", orderID, models.ErrOrderNotPending)
		}

		order.Status = models.OrderInProgress
		started = append(started, *order)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return started, nil
}

// returnOrderToPending releases an in-progress order back to the queue. Only
// the admin holding the task may return it, and a completed task never goes
// back.
func (h *Handler) returnOrderToPending(ctx context.Context, adminID, orderID int) (*models.Order, error) {
	tx, err := h.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, task, err := lockOrderAndTask(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransition(models.OrderPending) {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrOrderNotInProgress)
	}
	if !task.Assigned() {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrTaskNotAssigned)
	}
	if *task.AdminID != adminID {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrAdminMismatch)
	}
	if !task.Unassign() {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrTaskCompleted)
	}

	_, err = tx.Exec(ctx, `
		UPDATE tasks
		SET admin_id = NULL, assigned_at = NULL
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to release task for order %d: %w", orderID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $1
		WHERE id = $2
	`, string(models.OrderPending), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to return order %d: %w", orderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Status = models.OrderPending
	return order, nil
}

// completeOrder finishes an in-progress order. Only the assigned admin may
// complete it.
func (h *Handler) completeOrder(ctx context.Context, adminID, orderID int) (*models.Order, error) {
	tx, err := h.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, task, err := lockOrderAndTask(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransition(models.OrderCompleted) {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrOrderNotInProgress)
	}
	if task.AdminID != nil && *task.AdminID != adminID {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrAdminMismatch)
	}
	if !task.Complete() {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrTaskNotAssigned)
	}

	_, err = tx.Exec(ctx, `
		UPDATE tasks
		SET completed_at = $1
		WHERE order_id = $2
	`, task.CompletedAt, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task for order %d: %w", orderID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $1
		WHERE id = $2
	`, string(models.OrderCompleted), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete order %d: %w", orderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Status = models.OrderCompleted
	return order, nil
}

// listFulfillmentOrders returns the admin queue for one status, newest first,
// with optional delivery method and order id filters.
func (h *Handler) listFulfillmentOrders(ctx context.Context, status models.OrderStatus, req models.FulfillmentListRequest) (*models.OrderListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = fulfillmentPageSize
	}

	conditions := []string{"o.status = $1"}
	args := []interface{}{string(status)}

	if req.DeliveryMethod != "" {
		method := models.DeliveryMethod(strings.ToUpper(req.DeliveryMethod))
		if !method.IsValid() {
			return nil, fmt.Errorf("invalid delivery method %q: %w", req.DeliveryMethod, models.ErrInvalidDelivery)
		}
		args = append(args, string(method))
		conditions = append(conditions, fmt.Sprintf("o.delivery_method = $%d", len(args)))
	}

	if req.Search != "" {
		orderID, err := strconv.Atoi(strings.TrimSpace(req.Search))
		if err != nil {
			// Non-numeric search matches nothing rather than erroring
			return &models.OrderListResponse{Orders: []models.Order{}, Page: page}, nil
		}
		args = append(args, orderID)
		conditions = append(conditions, fmt.Sprintf("o.id = $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM orders o WHERE " + where
	if err := h.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count fulfillment orders: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`
		SELECT o.id, o.user_id, o.total_price, o.date, o.status, o.stripe_session_id, o.stripe_payment_id,
			o.delivery_method, o.payment_status, o.shipping_address_id,
			t.id, t.admin_id, t.order_id, t.assigned_at, t.completed_at
		FROM orders o
		JOIN tasks t ON t.order_id = o.id
		WHERE %s
		ORDER BY o.date ASC, o.id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := h.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fulfillment orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		var task models.Task
		err := rows.Scan(
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
			&task.ID,
			&task.AdminID,
			&task.OrderID,
			&task.AssignedAt,
			&task.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fulfillment order: %w", err)
		}
		order.Task = &task
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fulfillment orders: %w", err)
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}

	return &models.OrderListResponse{
		Orders:     orders,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}
