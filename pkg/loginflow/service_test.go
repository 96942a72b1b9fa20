package loginflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/proxy-admin-auth/pkg/audit"
	"github.com/tendant/proxy-admin-auth/pkg/backupcode"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"github.com/tendant/proxy-admin-auth/pkg/login"
	"github.com/tendant/proxy-admin-auth/pkg/ratelimit"
	"github.com/tendant/proxy-admin-auth/pkg/sessions"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
	"github.com/tendant/proxy-admin-auth/pkg/twofa"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *captureRecorder) Record(ctx context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *captureRecorder) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	svc      *Service
	twofa    *twofa.Service
	accounts *login.InMemoryAccountRepository
	tokens   *tg.Issuer
	pending  *sessions.InMemoryPendingStore
	clock    *testClock
	recorder *captureRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Now().Truncate(time.Second)}
	accounts := login.NewInMemoryAccountRepository()
	hasher := login.NewBcryptHasher(bcrypt.MinCost)

	cipher, err := twofa.NewSecretCipher("loginflow-test-key")
	require.NoError(t, err)
	recorder := &captureRecorder{}
	tf := twofa.NewService(twofa.NewInMemoryStateRepository(),
		backupcode.NewService(backupcode.NewInMemoryStore(),
			backupcode.WithCount(8),
			backupcode.WithHashCost(bcrypt.MinCost),
		),
		cipher,
		twofa.WithVerifier(twofa.NewVerifier(twofa.WithClock(clock.Now))),
		twofa.WithAttemptLimiter(ratelimit.NewAttemptLimiter(5, 5*time.Minute, ratelimit.WithAttemptClock(clock.Now))),
		twofa.WithRecorder(recorder),
	)

	tokens, err := tg.NewIssuer("loginflow-test-secret", tg.WithClock(clock.Now))
	require.NoError(t, err)
	pending := sessions.NewInMemoryPendingStore(100, tg.DefaultPendingTokenExpiry, sessions.WithStoreClock(clock.Now))

	svc := NewService(Dependencies{
		Authenticator: login.NewAuthenticator(accounts, hasher),
		Accounts:      accounts,
		SecondFactor:  tf,
		Tokens:        tokens,
		Pending:       pending,
		Recorder:      recorder,
		Now:           clock.Now,
	})

	f := &fixture{svc: svc, twofa: tf, accounts: accounts, tokens: tokens, pending: pending, clock: clock, recorder: recorder}
	f.addAccount(t, "admin", true)
	f.addAccount(t, "viewer", false)
	return f
}

func (f *fixture) addAccount(t *testing.T, username string, admin bool) login.Account {
	t.Helper()
	hash, err := login.NewBcryptHasher(bcrypt.MinCost).Hash(testPassword)
	require.NoError(t, err)
	account, err := f.accounts.Create(context.Background(), login.Account{
		Username: username, PasswordHash: hash, IsAdmin: admin, IsActive: true,
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) account(t *testing.T, username string) login.Account {
	t.Helper()
	account, err := f.accounts.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return account
}

// enroll enables a second factor and returns the secret and backup codes.
func (f *fixture) enroll(t *testing.T, id uuid.UUID) (string, []string) {
	t.Helper()
	ctx := context.Background()
	enrollment, err := f.twofa.Setup(ctx, id, "admin")
	require.NoError(t, err)
	codes, err := f.twofa.ConfirmSetup(ctx, id, f.code(t, enrollment.Secret))
	require.NoError(t, err)
	return enrollment.Secret, codes
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := twofa.GenerateCode(secret, f.clock.Now())
	require.NoError(t, err)
	return code
}

func (f *fixture) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	right := f.code(t, secret)
	for _, back := range []time.Duration{10 * time.Minute, 20 * time.Minute, 30 * time.Minute} {
		code, err := twofa.GenerateCode(secret, f.clock.Now().Add(-back))
		require.NoError(t, err)
		if code != right {
			return code
		}
	}
	t.Fatal("could not find a wrong code")
	return ""
}

func (f *fixture) login(t *testing.T, username string) Result {
	t.Helper()
	res, err := f.svc.Login(context.Background(), Request{Username: username, Password: testPassword})
	require.NoError(t, err)
	return res
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("without second factor returns a session only", func(t *testing.T) {
		f := newFixture(t)
		res := f.login(t, "admin")

		assert.False(t, res.RequiresSecondFactor)
		assert.Empty(t, res.TempToken)
		require.NotEmpty(t, res.Token)
		assert.False(t, res.Account.TwoFAEnabled)

		claims, err := f.tokens.Parse(res.Token, tg.KindSession)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
		assert.True(t, claims.IsAdmin)
		assert.Equal(t, audit.LoginSuccess, f.recorder.last().Type)
		assert.Zero(t, f.pending.Len())
	})

	t.Run("with second factor returns a pending token only", func(t *testing.T) {
		f := newFixture(t)
		f.enroll(t, f.account(t, "admin").ID)

		res := f.login(t, "admin")
		assert.True(t, res.RequiresSecondFactor)
		assert.Empty(t, res.Token)
		require.NotEmpty(t, res.TempToken)
		assert.True(t, res.Account.TwoFAEnabled)

		_, err := f.tokens.Parse(res.TempToken, tg.KindSession)
		assert.Error(t, err, "pending token is not a session")
		claims, err := f.tokens.Parse(res.TempToken, tg.KindPending)
		require.NoError(t, err)

		stored, err := f.pending.Get(ctx, claims.ID)
		require.NoError(t, err)
		assert.Equal(t, f.account(t, "admin").ID, stored.AccountID)
		assert.Equal(t, audit.LoginPending2FA, f.recorder.last().Type)
	})

	t.Run("non-admin is rejected regardless of second factor", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Login(ctx, Request{Username: "viewer", Password: testPassword})
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

		f.enroll(t, f.account(t, "viewer").ID)
		_, err = f.svc.Login(ctx, Request{Username: "viewer", Password: testPassword})
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

		event := f.recorder.last()
		assert.Equal(t, audit.LoginFail, event.Type)
		assert.Equal(t, "not_admin", event.Details)
	})

	t.Run("unknown user and wrong password look the same", func(t *testing.T) {
		f := newFixture(t)
		_, errUnknown := f.svc.Login(ctx, Request{Username: "ghost", Password: testPassword})
		_, errWrong := f.svc.Login(ctx, Request{Username: "admin", Password: "nope"})
		assert.Equal(t, apperrors.PublicMessage(errUnknown), apperrors.PublicMessage(errWrong))
		assert.Equal(t, apperrors.GetCode(errUnknown), apperrors.GetCode(errWrong))
	})
}

func TestVerifyLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("totp completes the login once", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enroll(t, f.account(t, "admin").ID)
		pending := f.login(t, "admin")

		res, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(f.code(t, secret)))
		require.NoError(t, err)
		claims, err := f.tokens.Parse(res.Token, tg.KindSession)
		require.NoError(t, err)
		assert.True(t, claims.IsAdmin)
		assert.True(t, res.Account.TwoFAEnabled)

		_, err = f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(f.code(t, secret)))
		assert.ErrorIs(t, err, apperrors.ErrTokenInvalid, "pending session is single use")
	})

	t.Run("backup code completes the login", func(t *testing.T) {
		f := newFixture(t)
		_, codes := f.enroll(t, f.account(t, "admin").ID)
		pending := f.login(t, "admin")

		_, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(codes[0]))
		require.NoError(t, err)
		assert.Equal(t, "backup_code", f.recorder.last().Method)

		again := f.login(t, "admin")
		_, err = f.svc.VerifyLogin(ctx, again.TempToken, twofa.ClassifyCredential(codes[0]))
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode, "backup code is consumed")
	})

	t.Run("wrong code keeps the pending session", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enroll(t, f.account(t, "admin").ID)
		pending := f.login(t, "admin")

		_, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(f.wrongCode(t, secret)))
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode)

		_, err = f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(f.code(t, secret)))
		assert.NoError(t, err)
	})

	t.Run("sixth attempt is rate limited even when correct", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enroll(t, f.account(t, "admin").ID)
		pending := f.login(t, "admin")

		for i := 0; i < 5; i++ {
			_, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(f.wrongCode(t, secret)))
			require.ErrorIs(t, err, apperrors.ErrInvalidCode)
		}
		_, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(f.code(t, secret)))
		assert.ErrorIs(t, err, apperrors.ErrRateLimited)

		fresh := f.login(t, "admin")
		_, err = f.svc.VerifyLogin(ctx, fresh.TempToken, twofa.ClassifyCredential(f.code(t, secret)))
		assert.NoError(t, err, "a new pending session has its own counter")
	})

	t.Run("session token is refused", func(t *testing.T) {
		f := newFixture(t)
		session := f.login(t, "admin")
		_, err := f.svc.VerifyLogin(ctx, session.Token, twofa.ClassifyCredential("123456"))
		assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("expired pending token is refused", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enroll(t, f.account(t, "admin").ID)
		pending := f.login(t, "admin")

		f.clock.Advance(tg.DefaultPendingTokenExpiry + time.Second)
		_, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(f.code(t, secret)))
		assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("token without pending session is refused", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enroll(t, f.account(t, "admin").ID)
		account := f.account(t, "admin")
		forged, err := f.tokens.IssuePending(tg.Subject{AccountID: account.ID, Username: account.Username})
		require.NoError(t, err)

		_, err = f.svc.VerifyLogin(ctx, forged.Token, twofa.ClassifyCredential(f.code(t, secret)))
		assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("concurrent correct submissions mint one session", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enroll(t, f.account(t, "admin").ID)
		pending := f.login(t, "admin")
		code := f.code(t, secret)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(code)); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("concurrent backup codes spend exactly one", func(t *testing.T) {
		f := newFixture(t)
		id := f.account(t, "admin").ID
		_, codes := f.enroll(t, id)
		pending := f.login(t, "admin")

		var wins atomic.Int32
		var wg sync.WaitGroup
		for _, c := range codes {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				if _, err := f.svc.VerifyLogin(ctx, pending.TempToken, twofa.ClassifyCredential(code)); err == nil {
					wins.Add(1)
				}
			}(c)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		status, err := f.twofa.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, len(codes)-1, status.BackupCodesRemaining)
	})

	t.Run("disable with backup code returns login to password only", func(t *testing.T) {
		f := newFixture(t)
		id := f.account(t, "admin").ID
		_, codes := f.enroll(t, id)

		require.NoError(t, f.twofa.Disable(ctx, id, twofa.ClassifyCredential(codes[3])))
		status, err := f.twofa.Status(ctx, id)
		require.NoError(t, err)
		assert.False(t, status.Enabled)
		assert.Zero(t, status.BackupCodesRemaining)

		res := f.login(t, "admin")
		assert.False(t, res.RequiresSecondFactor)
		assert.NotEmpty(t, res.Token)
	})
}
