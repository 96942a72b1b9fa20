package twofa

import (
	"strings"
	"unicode/utf8"

	"github.com/tendant/proxy-admin-auth/pkg/backupcode"
)

// Method names the verification path a credential takes.
type Method string

const (
	MethodTOTP       Method = "totp"
	MethodBackupCode Method = "backup_code"
)

// Credential is a user-supplied code after classification.
type Credential struct {
	Method Method
	Value  string
}

// ClassifyCredential applies the structural rule shared by every endpoint
// that accepts "code or backup code": an 8 character value is a backup code
// and anything else is a TOTP code. The two paths never fall back to each other.
func ClassifyCredential(input string) Credential {
	value := strings.TrimSpace(input)
	if utf8.RuneCountInString(value) == backupcode.Length {
		return Credential{Method: MethodBackupCode, Value: value}
	}
	return Credential{Method: MethodTOTP, Value: value}
}

// ChooseCredential picks the value a client submitted as "code" or
// "backup_code", preferring backup_code when both are present, and
// classifies it. It reports false when neither carries a value.
func ChooseCredential(code, backupCode string) (Credential, bool) {
	value := strings.TrimSpace(backupCode)
	if value == "" {
		value = strings.TrimSpace(code)
	}
	if value == "" {
		return Credential{}, false
	}
	return ClassifyCredential(value), true
}
