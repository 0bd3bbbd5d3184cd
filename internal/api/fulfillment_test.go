package api

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

func seedPendingOrder(t *testing.T, h *Handler, userID int) int {
	t.Helper()
	ctx := context.Background()

	var orderID int
	err := h.db.Pool.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_price, date, status, stripe_session_id, stripe_payment_id,
			delivery_method, payment_status, shipping_address_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, userID, "18.00", time.Now().UTC(), string(models.OrderPending),
		"cs_test_"+uuid.NewString(), "pi_test_"+uuid.NewString(),
		string(models.DeliveryStandard), string(models.PaymentCompleted), 42).Scan(&orderID)
	require.NoError(t, err)

	_, err = h.db.Pool.Exec(ctx, `
		INSERT INTO tasks (admin_id, order_id, assigned_at, completed_at)
		VALUES (NULL, $1, NULL, NULL)
	`, orderID)
	require.NoError(t, err)

	return orderID
}

func orderState(t *testing.T, h *Handler, orderID int) (models.OrderStatus, models.Task) {
	t.Helper()
	var status models.OrderStatus
	var task models.Task
	err := h.db.Pool.QueryRow(context.Background(), `
		SELECT o.status, t.id, t.admin_id, t.order_id, t.assigned_at, t.completed_at
		FROM orders o
		JOIN tasks t ON t.order_id = o.id
		WHERE o.id = $1
	`, orderID).Scan(&status, &task.ID, &task.AdminID, &task.OrderID, &task.AssignedAt, &task.CompletedAt)
	require.NoError(t, err)
	return status, task
}

func TestStartOrders_ClaimsBatchForAdmin(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	userID := nextTestUserID()
	adminID := nextTestUserID()

	order1 := seedPendingOrder(t, h, userID)
	order2 := seedPendingOrder(t, h, userID)

	started, err := h.startOrders(ctx, adminID, []int{order1, order2})
	require.NoError(t, err)
	require.Len(t, started, 2)

	for _, orderID := range []int{order1, order2} {
		status, task := orderState(t, h, orderID)
		assert.Equal(t, models.OrderInProgress, status)
		require.NotNil(t, task.AdminID)
		assert.Equal(t, adminID, *task.AdminID)
		assert.NotNil(t, task.AssignedAt)
	}
}

func TestStartOrders_BatchWithUnknownIDChangesNothing(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	userID := nextTestUserID()
	adminID := nextTestUserID()

	order1 := seedPendingOrder(t, h, userID)
	order2 := seedPendingOrder(t, h, userID)

	_, err := h.startOrders(ctx, adminID, []int{order1, order2, 1 << 30})
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))

	for _, orderID := range []int{order1, order2} {
		status, task := orderState(t, h, orderID)
		assert.Equal(t, models.OrderPending, status)
		assert.Nil(t, task.AdminID)
		assert.Nil(t, task.AssignedAt)
	}
}

func TestStartOrders_HeldTaskRejectsWholeBatch(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	userID := nextTestUserID()
	holder := nextTestUserID()
	adminID := nextTestUserID()

	order1 := seedPendingOrder(t, h, userID)
	order2 := seedPendingOrder(t, h, userID)
	_, err := h.db.Pool.Exec(ctx, `
		UPDATE tasks SET admin_id = $1, assigned_at = $2 WHERE order_id = $3
	`, holder, time.Now().UTC(), order2)
	require.NoError(t, err)

	_, err = h.startOrders(ctx, adminID, []int{order1, order2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTaskAlreadyAssigned))

	// The clean order in the batch is untouched, the held one keeps its holder
	status, task := orderState(t, h, order1)
	assert.Equal(t, models.OrderPending, status)
	assert.Nil(t, task.AdminID)

	_, task = orderState(t, h, order2)
	require.NotNil(t, task.AdminID)
	assert.Equal(t, holder, *task.AdminID)
}

func TestReturnOrderToPending(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	userID := nextTestUserID()
	adminID := nextTestUserID()
	stranger := nextTestUserID()

	orderID := seedPendingOrder(t, h, userID)
	_, err := h.startOrders(ctx, adminID, []int{orderID})
	require.NoError(t, err)

	// Another admin cannot return someone else's order
	_, err = h.returnOrderToPending(ctx, stranger, orderID)
	require.Error(t, err)
	assert.True(t, models.IsPermission(err))
	status, _ := orderState(t, h, orderID)
	assert.Equal(t, models.OrderInProgress, status)

	order, err := h.returnOrderToPending(ctx, adminID, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)

	status, task := orderState(t, h, orderID)
	assert.Equal(t, models.OrderPending, status)
	assert.Nil(t, task.AdminID)
	assert.Nil(t, task.AssignedAt)
}

func TestReturnOrderToPending_RequiresInProgress(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	adminID := nextTestUserID()

	orderID := seedPendingOrder(t, h, nextTestUserID())

	_, err := h.returnOrderToPending(ctx, adminID, orderID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrOrderNotInProgress))
}

func TestCompleteOrder(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	userID := nextTestUserID()
	adminID := nextTestUserID()
	stranger := nextTestUserID()

	orderID := seedPendingOrder(t, h, userID)
	_, err := h.startOrders(ctx, adminID, []int{orderID})
	require.NoError(t, err)

	_, err = h.completeOrder(ctx, stranger, orderID)
	require.Error(t, err)
	assert.True(t, models.IsPermission(err))

	order, err := h.completeOrder(ctx, adminID, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)

	status, task := orderState(t, h, orderID)
	assert.Equal(t, models.OrderCompleted, status)
	assert.NotNil(t, task.CompletedAt)

	// A completed order can neither be returned nor completed again
	_, err = h.returnOrderToPending(ctx, adminID, orderID)
	assert.True(t, errors.Is(err, models.ErrOrderNotInProgress))
	_, err = h.completeOrder(ctx, adminID, orderID)
	assert.True(t, errors.Is(err, models.ErrOrderNotInProgress))
}

func TestCompleteOrder_RequiresInProgress(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	adminID := nextTestUserID()

	orderID := seedPendingOrder(t, h, nextTestUserID())

	_, err := h.completeOrder(ctx, adminID, orderID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrOrderNotInProgress))
}

func TestListFulfillmentOrders_FiltersAndSearch(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	userID := nextTestUserID()

	orderID := seedPendingOrder(t, h, userID)

	resp, err := h.listFulfillmentOrders(ctx, models.OrderPending, models.FulfillmentListRequest{
		Search: "  " + strconv.Itoa(orderID) + " ",
	})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, orderID, resp.Orders[0].ID)
	require.NotNil(t, resp.Orders[0].Task)

	// Non-numeric search matches nothing instead of erroring
	resp, err = h.listFulfillmentOrders(ctx, models.OrderPending, models.FulfillmentListRequest{
		Search: "cake",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Orders)

	// An invalid delivery filter is a validation failure
	_, err = h.listFulfillmentOrders(ctx, models.OrderPending, models.FulfillmentListRequest{
		DeliveryMethod: "TELEPORT",
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}
