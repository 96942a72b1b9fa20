package twofa

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

func TestVerifierSkew(t *testing.T) {
	issuedAt := time.Unix(1_700_000_010, 0)
	code, err := GenerateCode(testSecret, issuedAt)
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"same instant", 0, true},
		{"30s later", 30 * time.Second, true},
		{"30s earlier", -30 * time.Second, true},
		{"90s later", 90 * time.Second, false},
		{"90s earlier", -90 * time.Second, false},
		{"10 minutes later", 10 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(WithClock(func() time.Time { return issuedAt.Add(tt.offset) }))
			assert.Equal(t, tt.want, v.Validate(testSecret, code))
		})
	}
}

func TestVerifierRejectsMalformed(t *testing.T) {
	v := NewVerifier()
	for _, code := range []string{"", "12345", "1234567", "12a456", " 12345", "１２３４５６"} {
		assert.False(t, IsWellFormedCode(code), "%q", code)
		assert.False(t, v.Validate(testSecret, code), "%q", code)
	}
	assert.True(t, IsWellFormedCode("012345"))
}

func TestClassifyCredential(t *testing.T) {
	tests := []struct {
		input string
		want  Credential
	}{
		{"123456", Credential{Method: MethodTOTP, Value: "123456"}},
		{" 123456 ", Credential{Method: MethodTOTP, Value: "123456"}},
		{"abcd2345", Credential{Method: MethodBackupCode, Value: "abcd2345"}},
		{"12345678", Credential{Method: MethodBackupCode, Value: "12345678"}},
		{"1234567", Credential{Method: MethodTOTP, Value: "1234567"}},
		{"", Credential{Method: MethodTOTP, Value: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCredential(tt.input))
		})
	}
}

func TestChooseCredential(t *testing.T) {
	cred, ok := ChooseCredential("123456", "")
	assert.True(t, ok)
	assert.Equal(t, MethodTOTP, cred.Method)

	cred, ok = ChooseCredential("123456", "ABCD2345")
	assert.True(t, ok)
	assert.Equal(t, Credential{Method: MethodBackupCode, Value: "ABCD2345"}, cred, "backup_code wins")

	cred, ok = ChooseCredential("", "123456")
	assert.True(t, ok)
	assert.Equal(t, MethodTOTP, cred.Method, "the value decides the path, not the field")

	_, ok = ChooseCredential(" ", "")
	assert.False(t, ok)
}

func TestSecretCipher(t *testing.T) {
	c, err := NewSecretCipher("test-key")
	require.NoError(t, err)

	sealed, err := c.Encrypt(testSecret)
	require.NoError(t, err)
	assert.NotContains(t, sealed, testSecret)

	again, err := c.Encrypt(testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per encryption")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, testSecret, plain)

	other, err := NewSecretCipher("other-key")
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	assert.Error(t, err)

	_, err = c.Decrypt("not base64!")
	assert.Error(t, err)

	_, err = NewSecretCipher("")
	assert.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	g := NewGenerator("")
	a, err := g.GenerateSecret("admin")
	require.NoError(t, err)
	b, err := g.GenerateSecret("admin")
	require.NoError(t, err)

	assert.NotEqual(t, a.Secret, b.Secret)
	assert.True(t, strings.HasPrefix(a.ProvisioningURL, "otpauth://totp/"))
	assert.Contains(t, a.ProvisioningURL, "issuer="+DefaultIssuer)
	assert.True(t, strings.HasPrefix(a.QRCode, "data:image/png;base64,"))

	code, err := GenerateCode(a.Secret, time.Now())
	require.NoError(t, err)
	assert.True(t, NewVerifier().Validate(a.Secret, code))
}
