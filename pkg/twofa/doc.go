// Package twofa implements TOTP second factors for administrator accounts.
//
// An account moves through three states:
//
//	DISABLED --Setup--> PENDING_CONFIRMATION --ConfirmSetup--> ENABLED
//	ENABLED --Disable--> DISABLED
//	ENABLED --RegenerateBackupCodes--> ENABLED
//
// Codes are checked by Verifier with a 30 second step and one step of skew.
// Operations that accept "a code or a backup code" take a Credential built by
// ClassifyCredential: eight characters select the backup code path, anything
// else the TOTP path, and a failure on one path never falls through to the other.
//
// Secrets are sealed with SecretCipher before they reach a StateRepository.
//
// Basic usage:
//
//	cipher, _ := twofa.NewSecretCipher(cfg.TwoFA.SecretKey(cfg.JWT.Secret))
//	states, _ := twofa.NewStateRepository("file", twofa.RepositoryConfig{DataDir: "./data"})
//	svc := twofa.NewService(states, backupcode.NewService(store), cipher,
//		twofa.WithGenerator(twofa.NewGenerator("ProxyAdmin")),
//		twofa.WithAttemptLimiter(ratelimit.NewAttemptLimiter(5, 5*time.Minute)),
//	)
//
//	enrollment, err := svc.Setup(ctx, accountID, "admin")
//	codes, err := svc.ConfirmSetup(ctx, accountID, "123456")
//	err = svc.VerifyCredential(ctx, accountID, "pending:"+jti, twofa.ClassifyCredential(input))
package twofa
