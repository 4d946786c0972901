package domain

import "fmt"

// AppError is the unified error type for the service.
// Each error has a numeric code and human-readable message.
type AppError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("knightmint error %d: %s", e.Code, e.Message)
}

// NewAppError creates a new AppError.
func NewAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// WrapAppError creates an AppError that includes a cause.
func WrapAppError(code int, msg string, cause error) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Catalog / rules errors (-32010 to -32039) ----

var (
	ErrPuzzleNotFound = &AppError{Code: -32010, Message: "puzzle not found in catalog"}
	ErrDatasetInvalid = &AppError{Code: -32011, Message: "puzzle dataset validation failed"}
	ErrBadFEN         = &AppError{Code: -32012, Message: "malformed board position"}
	ErrBadSquare      = &AppError{Code: -32013, Message: "malformed square coordinate"}
	ErrIllegalMove    = &AppError{Code: -32014, Message: "move is not legal from this position"}
	ErrEmptySquare    = &AppError{Code: -32015, Message: "no piece on source square"}
	ErrWrongTurn      = &AppError{Code: -32016, Message: "piece does not belong to side to move"}
)

// ---- Session errors (-32040 to -32069) ----

var (
	ErrInvalidTransition = &AppError{Code: -32040, Message: "invalid session transition"}
	ErrSessionNotFound   = &AppError{Code: -32041, Message: "no active session for user"}
	ErrSessionTerminal   = &AppError{Code: -32042, Message: "session is in a terminal state"}
	ErrNotLost           = &AppError{Code: -32043, Message: "session is not in the lost state"}
	ErrHintAlreadyUsed   = &AppError{Code: -32044, Message: "hint already revealed for this puzzle"}
	ErrAnswerNotRevealed = &AppError{Code: -32045, Message: "answer has not been revealed"}
)

// ---- Payment errors (-32070 to -32099) ----

var (
	ErrPaymentBusy      = &AppError{Code: -32070, Message: "another payment is already in flight"}
	ErrWalletGone       = &AppError{Code: -32071, Message: "wallet capability unavailable"}
	ErrPaymentRejected  = &AppError{Code: -32072, Message: "payment rejected or cancelled"}
	ErrConfirmTimeout   = &AppError{Code: -32073, Message: "payment confirmation timed out"}
	ErrReferenceUnknown = &AppError{Code: -32074, Message: "payment reference was not issued by this server"}
	ErrRateLimited      = &AppError{Code: -32075, Message: "payment attempt rate limit exceeded"}
	ErrPortalLookup     = &AppError{Code: -32076, Message: "authoritative transaction lookup failed"}
	ErrBadUnlockKind    = &AppError{Code: -32077, Message: "unknown unlock kind"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit     = &AppError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery    = &AppError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite    = &AppError{Code: -32132, Message: "store write failed"}
	ErrConfigInvalid = &AppError{Code: -32136, Message: "invalid configuration"}
)
