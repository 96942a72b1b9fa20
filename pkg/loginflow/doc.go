// Package loginflow drives console login: a password check followed, for
// accounts with an enabled second factor, by code verification against a
// pending session.
//
// Login runs an ordered list of steps (credential authentication, second
// factor requirement, session issuance). An enrolled account stops at the
// second step with a pending token; its JTI keys a sessions.PendingSession
// and the attempt limiter.
//
//	res, err := svc.Login(ctx, loginflow.Request{Username: u, Password: p})
//	if res.RequiresSecondFactor {
//		res, err = svc.VerifyLogin(ctx, res.TempToken, twofa.ClassifyCredential(code))
//	}
//
// VerifyLogin consumes the pending session only after the credential
// verifies, so a mistyped code can be retried until the limiter or the
// expiry ends the attempt.
package loginflow
