package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrAlreadyRefunded    = errors.New("sale already refunded")
	ErrDuplicate          = errors.New("duplicate identifier")
	ErrForeignKey         = errors.New("foreign key constraint")
	ErrInvalidInput       = errors.New("invalid input")
)

// NotFoundError reports a missing entity of the given kind.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	label := e.Name
	if label == "" {
		label = e.ProductID
	}
	return fmt.Sprintf("not enough stock for %s. Available: %d, Requested: %d", label, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type InsufficientPointsError struct {
	Available int
	Requested int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points. Available: %d, trying to redeem: %d", e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

type AlreadyRefundedError struct {
	SaleID string
}

func (e *AlreadyRefundedError) Error() string {
	return fmt.Sprintf("sale %q has already been refunded", e.SaleID)
}

func (e *AlreadyRefundedError) Unwrap() error { return ErrAlreadyRefunded }

type DuplicateIdentifierError struct {
	Field string
	Value string
}

func (e *DuplicateIdentifierError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s already exists", e.Field)
	}
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

func (e *DuplicateIdentifierError) Unwrap() error { return ErrDuplicate }

// ForeignKeyError is returned when a delete or insert violates a reference,
// e.g. deleting a store that users or sales still point at.
type ForeignKeyError struct {
	Entity string
	ID     string
}

func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf("%s %q is still referenced by other records", e.Entity, e.ID)
}

func (e *ForeignKeyError) Unwrap() error { return ErrForeignKey }

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsClientError reports whether err was caused by the request rather than
// by the backing store.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrInsufficientStock,
		ErrInsufficientPoints,
		ErrAlreadyRefunded,
		ErrDuplicate,
		ErrForeignKey,
		ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
