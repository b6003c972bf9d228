package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// InvalidOrderError rejects an order before it enters the book. Not retriable.
type InvalidOrderError struct {
	Field  string
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return "invalid order [" + e.Field + "]: " + e.Reason
}

func (e *InvalidOrderError) IsRetriable() bool {
	return false
}

func (e *InvalidOrderError) Unwrap() error {
	return ErrInvalidOrder
}

// ConflictError wraps a storage-level failure of the settlement commit.
// The caller retries the full matching pass against fresh state.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	return "settlement conflict [" + e.Op + "]: " + e.Err.Error()
}

func (e *ConflictError) IsRetriable() bool {
	return true
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// NewConflictError creates a retriable settlement conflict error
func NewConflictError(op string, err error) *ConflictError {
	return &ConflictError{Op: op, Err: err}
}

var (
	// ErrInvalidOrder is returned for non-positive price/quantity or an unknown
	// instrument. Rejected before any state is mutated.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotFound is returned when an order/instrument/trader lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyFilled is returned on cancel of a fully filled order. Reported, not fatal.
	ErrAlreadyFilled = errors.New("order already filled")

	// ErrAlreadyCancelled is returned on cancel of a cancelled order
	ErrAlreadyCancelled = errors.New("order already cancelled")

	// ErrSettlementConflict is surfaced after the bounded retry budget is spent
	ErrSettlementConflict = errors.New("settlement conflict")

	// ErrInsufficientFunds rejects a buy whose notional exceeds available cash
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings rejects a sell exceeding available shares
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)
