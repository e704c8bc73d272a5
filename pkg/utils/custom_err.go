package utils

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPlan    = errors.New("invalid plan")
	ErrChargeNotFound = errors.New("charge not found")
	ErrUnauthorized   = errors.New("unauthorized")
)

// GatewayError covers both transport failures and structurally incomplete
// processor responses. RawBody keeps the exact payload for diagnosis when
// the processor answered but the answer was missing required fields.
type GatewayError struct {
	Op      string
	RawBody string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.RawBody != "" {
		return fmt.Sprintf("gateway %s: %v (raw: %s)", e.Op, e.Err, e.RawBody)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// StorageError marks a ledger I/O failure. Fatal to the current operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// GrantError means the payment is captured but the invite could not be
// issued. Callers must route the user to manual support, never drop it.
type GrantError struct {
	UserID int64
	Err    error
}

func (e *GrantError) Error() string { return fmt.Sprintf("grant for user %d: %v", e.UserID, e.Err) }
func (e *GrantError) Unwrap() error { return e.Err }
