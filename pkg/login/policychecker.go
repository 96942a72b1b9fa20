package login

import (
	"fmt"
	"strings"
	"unicode"
)

// PasswordPolicy defines the requirements for a new administrator password.
type PasswordPolicy struct {
	MinLength          int
	MaxLength          int
	RequireLetter      bool
	RequireDigit       bool
	DisallowCommonPwds bool
	MaxRepeatedChars   int
}

// PasswordPolicyChecker checks a candidate password against a policy.
type PasswordPolicyChecker interface {
	CheckPasswordComplexity(password string) error
}

// DefaultPasswordPolicy returns the policy applied at initial setup.
// MaxLength stops at bcrypt's 72-byte input limit.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:          8,
		MaxLength:          72,
		DisallowCommonPwds: true,
		MaxRepeatedChars:   4,
	}
}

type DefaultPasswordPolicyChecker struct {
	policy          *PasswordPolicy
	commonPasswords map[string]bool
}

func NewDefaultPasswordPolicyChecker(policy *PasswordPolicy) *DefaultPasswordPolicyChecker {
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	return &DefaultPasswordPolicyChecker{
		policy:          policy,
		commonPasswords: commonPasswords(),
	}
}

func (pc *DefaultPasswordPolicyChecker) CheckPasswordComplexity(password string) error {
	p := pc.policy
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return fmt.Errorf("password must be at most %d bytes long", p.MaxLength)
	}
	if p.RequireLetter && strings.IndexFunc(password, unicode.IsLetter) < 0 {
		return fmt.Errorf("password must contain at least one letter")
	}
	if p.RequireDigit && strings.IndexFunc(password, unicode.IsDigit) < 0 {
		return fmt.Errorf("password must contain at least one digit")
	}
	if p.DisallowCommonPwds && pc.commonPasswords[strings.ToLower(password)] {
		return fmt.Errorf("password is too common, please choose a more secure password")
	}
	if p.MaxRepeatedChars > 0 && hasRepeatedChars(password, p.MaxRepeatedChars) {
		return fmt.Errorf("password cannot contain more than %d consecutive repeated characters", p.MaxRepeatedChars)
	}
	return nil
}

// hasRepeatedChars reports a run of more than max identical runes.
func hasRepeatedChars(password string, max int) bool {
	run := 0
	var prev rune = -1
	for _, r := range password {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > max {
			return true
		}
	}
	return false
}

func commonPasswords() map[string]bool {
	list := []string{
		"password", "password1", "12345678", "123456789", "qwertyuiop",
		"administrator", "admin123", "adminadmin", "letmein1", "welcome1",
		"changeme", "iloveyou", "proxyadmin",
	}
	m := make(map[string]bool, len(list))
	for _, p := range list {
		m[p] = true
	}
	return m
}
