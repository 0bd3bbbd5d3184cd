package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_AssignAdmin(t *testing.T) {
	task := Task{ID: 1, OrderID: 10}

	require.True(t, task.AssignAdmin(7))
	require.NotNil(t, task.AdminID)
	assert.Equal(t, 7, *task.AdminID)
	assert.NotNil(t, task.AssignedAt)
	assert.True(t, task.Assigned())
}

func TestTask_AssignAdmin_FirstAssigneeWins(t *testing.T) {
	task := Task{ID: 1, OrderID: 10}
	require.True(t, task.AssignAdmin(7))

	// Second claim is rejected and the holder is unchanged
	assert.False(t, task.AssignAdmin(8))
	assert.Equal(t, 7, *task.AdminID)
}

func TestTask_Unassign(t *testing.T) {
	task := Task{ID: 1, OrderID: 10}
	require.True(t, task.AssignAdmin(7))

	require.True(t, task.Unassign())
	assert.Nil(t, task.AdminID)
	assert.Nil(t, task.AssignedAt)
	assert.False(t, task.Assigned())
}

func TestTask_Unassign_CompletedTaskStaysCompleted(t *testing.T) {
	task := Task{ID: 1, OrderID: 10}
	require.True(t, task.AssignAdmin(7))
	require.True(t, task.Complete())

	assert.False(t, task.Unassign())
	assert.NotNil(t, task.AdminID)
	assert.NotNil(t, task.CompletedAt)
}

func TestTask_Complete_RequiresAssignment(t *testing.T) {
	task := Task{ID: 1, OrderID: 10}

	assert.False(t, task.Complete())
	assert.Nil(t, task.CompletedAt)

	require.True(t, task.AssignAdmin(7))
	assert.True(t, task.Complete())
	assert.NotNil(t, task.CompletedAt)
}

func TestTask_PartialAssignmentCannotComplete(t *testing.T) {
	// admin_id and assigned_at move together; a row missing either half is
	// treated as unassigned
	now := time.Now().UTC()
	task := Task{ID: 1, OrderID: 10, AssignedAt: &now}
	assert.False(t, task.Complete())
}
