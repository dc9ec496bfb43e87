package performance

import (
	"errors"
	"fmt"
)

var (
	// ErrVendorNotFound is returned when the referenced vendor does not exist
	ErrVendorNotFound = errors.New("vendor not found")

	// ErrNoSnapshot is returned when a vendor has no recorded history yet
	ErrNoSnapshot = errors.New("no snapshot")
)

// TransactionError reports a store failure that rolled the operation back.
// The caller may retry; nothing is retried inside the service.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// Retryable reports that the failed operation left no partial state behind
func (e *TransactionError) Retryable() bool { return true }

// IsRetryable reports whether err carries a retryable transaction failure
func IsRetryable(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr) && txErr.Retryable()
}

// WrapTx marks a failed transactional operation retryable.
// Vendor and snapshot lookups pass through unchanged.
func WrapTx(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrVendorNotFound) || errors.Is(err, ErrNoSnapshot) {
		return err
	}
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
