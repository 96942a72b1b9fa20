// Package tokengenerator mints and validates the two bearer token kinds used
// by the admin console: short-lived pending tokens that only authorize the
// second-factor step, and full session tokens.
package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates pending tokens from session tokens.
type Kind string

const (
	KindPending Kind = "pending"
	KindSession Kind = "session"
)

const (
	DefaultPendingTokenExpiry = 5 * time.Minute
	DefaultSessionTokenExpiry = 24 * time.Hour
	DefaultIssuer             = "proxy-admin"

	// ClaimKind is the JWT claim carrying the Kind.
	ClaimKind = "kind"
)

// Claims are the JWT claims of both token kinds.
type Claims struct {
	Kind     Kind   `json:"kind"`
	Username string `json:"username,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the subject as a uuid.
func (c *Claims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Subject identifies the account a token is minted for.
type Subject struct {
	AccountID uuid.UUID
	Username  string
	IsAdmin   bool
}

// Issued is a freshly signed token.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Issuer signs tokens with HS256.
type Issuer struct {
	secret        []byte
	issuer        string
	pendingExpiry time.Duration
	sessionExpiry time.Duration
	now           func() time.Time
}

type Option func(*Issuer)

func WithPendingExpiry(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.pendingExpiry = d
		}
	}
}

func WithSessionExpiry(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.sessionExpiry = d
		}
	}
}

func WithIssuerName(name string) Option {
	return func(i *Issuer) {
		if name != "" {
			i.issuer = name
		}
	}
}

// WithClock replaces time.Now for minting and validation.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	i := &Issuer{
		secret:        []byte(secret),
		issuer:        DefaultIssuer,
		pendingExpiry: DefaultPendingTokenExpiry,
		sessionExpiry: DefaultSessionTokenExpiry,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) PendingExpiry() time.Duration { return i.pendingExpiry }

func (i *Issuer) SessionExpiry() time.Duration { return i.sessionExpiry }

// IssuePending mints a token that only the second-factor endpoint accepts.
func (i *Issuer) IssuePending(sub Subject) (Issued, error) {
	return i.issue(sub, KindPending, i.pendingExpiry)
}

// IssueSession mints a full session token.
func (i *Issuer) IssueSession(sub Subject) (Issued, error) {
	return i.issue(sub, KindSession, i.sessionExpiry)
}

func (i *Issuer) issue(sub Subject, kind Kind, expiry time.Duration) (Issued, error) {
	now := i.now().UTC()
	claims := Claims{
		Kind:     kind,
		Username: sub.Username,
		IsAdmin:  sub.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   sub.AccountID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	// Pending tokens are scoped down to the account id.
	if kind == KindPending {
		claims.IsAdmin = false
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		slog.Error("Failed to sign token", "kind", kind, "err", err)
		return Issued{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Issued{Token: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse validates signature, issuer, expiry and kind. Any failure, including
// a missing expiry, is reported as an error.
func (i *Issuer) Parse(tokenStr string, kind Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("invalid token: kind %q, want %q", claims.Kind, kind)
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return claims, nil
}
