package shared

import "errors"

var (
	// ErrNotFound indicates resource not found or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySettled occurs when acting on a PAID or CANCELLED invoice.
	ErrAlreadySettled = errors.New("invoice is already settled")
	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")
	// ErrNotRecurring occurs when stopping a series on a non-recurring invoice.
	ErrNotRecurring = errors.New("invoice is not recurring")
	// ErrNumberAllocation indicates the counter store failed during numbering.
	ErrNumberAllocation = errors.New("invoice number allocation failed")
	// ErrTokenInvalid indicates an expired, consumed or malformed action token.
	ErrTokenInvalid = errors.New("invalid action token")
)
