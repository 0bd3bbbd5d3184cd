package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderPending, OrderInProgress, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderCompleted, false},
		{OrderPending, OrderDelivered, false},
		{OrderInProgress, OrderPending, true},
		{OrderInProgress, OrderCompleted, true},
		{OrderInProgress, OrderCancelled, false},
		{OrderCompleted, OrderDelivered, true},
		{OrderCompleted, OrderPending, false},
		{OrderCompleted, OrderInProgress, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrderStatus_TerminalStatesGoNowhere(t *testing.T) {
	all := []OrderStatus{OrderPending, OrderInProgress, OrderCompleted, OrderDelivered, OrderCancelled}
	for _, next := range all {
		assert.False(t, OrderDelivered.CanTransition(next), "DELIVERED -> %s", next)
		assert.False(t, OrderCancelled.CanTransition(next), "CANCELLED -> %s", next)
	}
}

func TestOrderStatus_IsValid(t *testing.T) {
	assert.True(t, OrderPending.IsValid())
	assert.False(t, OrderStatus("SHIPPED").IsValid())
}

func TestCategory_PortionSizes(t *testing.T) {
	assert.Equal(t, []PortionSize{PortionWhole, PortionMini, PortionSlice}, CategoryCake.PortionSizes())
	assert.Equal(t, []PortionSize{PortionWhole, PortionMini, PortionSlice}, CategoryPie.PortionSizes())
	assert.Equal(t, []PortionSize{PortionWhole, PortionMini}, CategoryCupcake.PortionSizes())
	assert.Equal(t, []PortionSize{PortionWhole, PortionMini}, CategoryDonut.PortionSizes())
	assert.Equal(t, []PortionSize{PortionWhole}, CategoryCookie.PortionSizes())
	assert.Equal(t, []PortionSize{PortionWhole}, CategoryPastry.PortionSizes())
}

func TestPortion_SoldOut(t *testing.T) {
	assert.True(t, (&Portion{Stock: 0}).SoldOut())
	assert.False(t, (&Portion{Stock: 3}).SoldOut())
}
