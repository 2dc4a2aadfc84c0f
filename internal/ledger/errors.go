package ledger

// DomainError is a machine-usable error category with a human-readable message.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

var (
	// ErrInvalidAmount rejects non-positive deposit amounts.
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "amount must be greater than zero",
	}
	// ErrDuplicateTransaction rejects a payment reference that was already
	// recorded. Nothing is persisted; the request is safe to retry-detect.
	ErrDuplicateTransaction = &DomainError{
		Code:    "DUPLICATE_TRANSACTION",
		Message: "transaction already processed",
	}
	// ErrUserNotFound means the target user row does not exist.
	ErrUserNotFound = &DomainError{
		Code:    "USER_NOT_FOUND",
		Message: "user not found",
	}
	// ErrInconsistentState means the transaction row was written but the
	// balance update did not apply. The enclosing database transaction rolls
	// back, and the category is surfaced distinctly so it is never masked as
	// a generic failure.
	ErrInconsistentState = &DomainError{
		Code:    "INCONSISTENT_STATE",
		Message: "transaction recorded but balance update failed",
	}
)
