package twofa

import (
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the TOTP time step in seconds.
	Period = 30
	// Skew accepts one step either side of the current one.
	Skew = 1
	// CodeLength is the number of digits in a TOTP code.
	CodeLength = 6
)

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Verifier checks TOTP codes. It holds no state besides its clock.
type Verifier struct {
	now func() time.Time
}

type VerifierOption func(*Verifier)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// IsWellFormedCode reports whether code is exactly six ASCII digits.
func IsWellFormedCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Validate reports whether code is valid for secret at the verifier's current time.
// Malformed codes are rejected before any HMAC is computed.
func (v *Verifier) Validate(secret, code string) bool {
	if !IsWellFormedCode(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, v.now().UTC(), validateOpts)
	if err != nil {
		slog.Warn("Failed to validate totp code", "err", err)
		return false
	}
	return ok
}

// GenerateCode returns the code for secret at t.
func GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), validateOpts)
}
