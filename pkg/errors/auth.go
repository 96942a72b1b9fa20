package errors

// Authentication and second-factor error kinds. Messages are deliberately
// generic: callers must not be able to tell which check failed.
var (
	ErrInvalidCredentials   = New(ErrCodeInvalidCredentials, "Invalid credentials")
	ErrSecondFactorRequired = New(ErrCode2FARequired, "Two-factor verification required")
	ErrInvalidCode          = New(ErrCode2FAInvalid, "Invalid code")
	ErrRateLimited          = New(ErrCodeRateLimitExceeded, "Too many attempts")
	ErrTokenInvalid         = New(ErrCodeTokenInvalid, "Invalid or expired token")
	ErrStateConflict        = New(ErrCodeConflict, "Operation not allowed in current state")
)

// StateConflict returns a conflict error with a specific message.
func StateConflict(message string) *Error {
	return New(ErrCodeConflict, message)
}

// InvalidInput creates an "invalid input" error.
func InvalidInput(message string) *Error {
	return New(ErrCodeInvalidInput, message)
}

// InternalWrap wraps an unexpected failure.
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// RateLimited returns ErrRateLimited annotated with retry_after in seconds.
func RateLimited(retryAfterSeconds int) *Error {
	return ErrRateLimited.WithDetail("retry_after", retryAfterSeconds)
}
