package models

import "time"

// Task is the fulfillment handle for one order, 1:1 and cascade-deleted with
// it. admin_id and assigned_at are set and cleared together; completed_at is
// only ever set while an admin is assigned.
type Task struct {
	ID          int        `json:"id" db:"id"`
	AdminID     *int       `json:"admin_id,omitempty" db:"admin_id"`
	OrderID     int        `json:"order_id" db:"order_id"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// AssignAdmin assigns an admin to the task. First assignee wins: it returns
// false without mutating anything when any admin already holds the task.
func (t *Task) AssignAdmin(adminID int) bool {
	if t.AdminID != nil || t.AssignedAt != nil {
		return false
	}
	now := time.Now().UTC()
	t.AdminID = &adminID
	t.AssignedAt = &now
	return true
}

// Unassign clears the assigned admin. A completed task cannot be returned.
func (t *Task) Unassign() bool {
	if t.CompletedAt != nil {
		return false
	}
	t.AdminID = nil
	t.AssignedAt = nil
	return true
}

// Complete marks the task as completed. An unassigned task cannot be
// completed.
func (t *Task) Complete() bool {
	if t.AdminID == nil || t.AssignedAt == nil {
		return false
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	return true
}

// Assigned reports whether an admin currently holds the task
func (t *Task) Assigned() bool {
	return t.AdminID != nil
}
