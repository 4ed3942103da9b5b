package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the operation needs an authenticated user.
	ErrUnauthorized = errors.New("no authenticated user")
	// ErrForbidden indicates the user lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrEmptyCart is returned when ordering a cart without items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned when a stored line item would have count < 1.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrCartChanged is returned when a cart no longer matches the copy an
	// order was built from.
	ErrCartChanged = errors.New("cart changed since it was read")
)

// CommunicationError reports a failed store read or write. The attempted
// mutation must be assumed not applied.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s: communication error: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// Communication wraps err as a CommunicationError for op. Nil stays nil and
// an existing CommunicationError is returned unchanged.
func Communication(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CommunicationError
	if errors.As(err, &ce) {
		return err
	}
	return &CommunicationError{Op: op, Err: err}
}

// ValidationError lists the invalid fields of an input.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}
