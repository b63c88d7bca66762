package store

import (
	"errors"
	"fmt"
)

// Base error kinds. Every failure a workflow operation returns wraps exactly
// one of these, so callers classify with errors.Is and map to a response
// without string matching.
var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotApproved       = errors.New("order not approved")
	ErrExpired           = errors.New("download expired")
	ErrNotFound          = errors.New("not found")
)

// Entity-specific not-found errors; each matches both itself and ErrNotFound.
var (
	ErrUserNotFound      = fmt.Errorf("%w: user", ErrNotFound)
	ErrProductNotFound   = fmt.Errorf("%w: product", ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("%w: order", ErrNotFound)
	ErrOrderItemNotFound = fmt.Errorf("%w: order item", ErrNotFound)
	ErrImageNotFound     = fmt.Errorf("%w: product image", ErrNotFound)
	ErrChatNotFound      = fmt.Errorf("%w: chat", ErrNotFound)
)

var (
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrValidation)
	ErrProductInUse       = fmt.Errorf("%w: product referenced by order items", ErrValidation)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrForbidden)
	ErrAdminRequired      = fmt.Errorf("%w: admin role required", ErrForbidden)
)

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
