// Package errors defines the client-safe error kinds of the admin console
// and their HTTP mapping.
//
// An Error pairs an ErrorCode with a message that may be shown to callers.
// The underlying cause goes in Err and is only logged:
//
//	if err != nil {
//		return errors.InternalWrap(err, "failed to load account")
//	}
//
// Sentinels such as ErrInvalidCredentials and ErrInvalidCode compare by
// code, so errors.Is still matches after Because attaches a cause.
// Render writes any error as JSON with the mapped status; unstructured
// errors are reported as a generic internal error.
package errors
