// Package login authenticates console administrators by username and
// password and bootstraps the first administrator.
//
// Accounts live behind AccountRepository, with in-memory, JSON file and
// PostgreSQL implementations chosen by NewAccountRepository. Passwords are
// bcrypt hashes.
//
// Authenticator.Authenticate answers every rejection (unknown user, wrong
// password, inactive or non-admin account) with the same
// errors.ErrInvalidCredentials. The specific reason is wrapped inside for
// audit records only:
//
//	account, err := auth.Authenticate(ctx, username, password)
//	if err != nil {
//		slog.Warn("Login failed", "reason", login.FailureReason(err))
//		return err
//	}
//
// SetupService.CreateFirstAdmin succeeds only while no administrator
// exists; the check and insert are one repository step so two concurrent
// setup requests cannot both win.
package login
