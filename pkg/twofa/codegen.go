package twofa

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"log/slog"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultIssuer = "ProxyAdmin"
	qrCodeSize    = 256
)

// Enrollment is what a caller receives when starting TOTP setup.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURL string `json:"otpauth_url"`
	QRCode          string `json:"qr_code"`
}

// Generator creates TOTP enrollment secrets.
type Generator struct {
	issuer string
	random io.Reader
}

func NewGenerator(issuer string) *Generator {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Generator{issuer: issuer, random: rand.Reader}
}

// GenerateSecret returns a fresh 160-bit secret with its otpauth:// URL and
// a PNG QR code as a data URI.
func (g *Generator) GenerateSecret(accountName string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      g.issuer,
		AccountName: accountName,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Rand:        g.random,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "issuer", g.issuer, "err", err)
		return Enrollment{}, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("failed to encode qr code: %w", err)
	}

	return Enrollment{
		Secret:          key.Secret(),
		ProvisioningURL: key.URL(),
		QRCode:          "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
