package models

import "errors"

// Validation failures: bad input or wrong state. Reported to the caller,
// transaction rolled back, no retry implied.
var (
	ErrOrderNotPending     = errors.New("order is not pending")
	ErrOrderNotInProgress  = errors.New("order is not in progress")
	ErrTaskAlreadyAssigned = errors.New("task is already assigned")
	ErrTaskNotAssigned     = errors.New("task has no admin assigned")
	ErrTaskCompleted       = errors.New("task is already completed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptyCart           = errors.New("cart has no unordered items")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidStock        = errors.New("stock value must be non-negative")
	ErrInvalidDelivery     = errors.New("invalid delivery method")
)

// Permission failure: the action is legal in principle but not for this
// actor. Callers must be able to tell this apart from validation failures.
var ErrAdminMismatch = errors.New("requesting admin does not match assigned admin")

// Not-found failures
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrPortionNotFound  = errors.New("portion not found")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// ErrPortionMismatch is returned when a cart addition references a portion
// that does not belong to the selected product.
var ErrPortionMismatch = errors.New("portion does not belong to selected product")

// IsValidation reports whether err is a locally recoverable validation failure
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrOrderNotPending, ErrOrderNotInProgress, ErrTaskAlreadyAssigned,
		ErrTaskNotAssigned, ErrTaskCompleted, ErrInsufficientStock,
		ErrEmptyCart, ErrInvalidQuantity, ErrInvalidStock, ErrInvalidDelivery,
		ErrPortionMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsPermission reports whether err is a permission failure
func IsPermission(err error) bool {
	return errors.Is(err, ErrAdminMismatch)
}

// IsNotFound reports whether err is a missing-row failure
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrOrderNotFound, ErrProductNotFound, ErrPortionNotFound, ErrCartItemNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
