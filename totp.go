package goAccess

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

var errInvalidSecret = errors.New("stored totp secret is not valid base32")

type totpManager struct {
	config TOTPConfig
	rand   io.Reader
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{config: cfg, rand: rand.Reader}
}

func (m *totpManager) digits() otp.Digits {
	if m.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

// GenerateSecret returns a fresh base32 secret and its otpauth:// URI labelled
// with the issuer and account.
func (m *totpManager) GenerateSecret(account string) (string, string, error) {
	if m == nil {
		return "", "", ErrEngineNotReady
	}
	if account == "" {
		return "", "", errors.New("totp account name is empty")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      uint(m.config.Period),
		SecretSize:  uint(m.config.SecretSize),
		Digits:      m.digits(),
		Algorithm:   otp.AlgorithmSHA1,
		Rand:        m.rand,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// QRCodeDataURL renders uri as a PNG data URL.
func (m *totpManager) QRCodeDataURL(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, m.config.QRCodeSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Verify checks code against secret at now with the configured skew. A code
// of the wrong length is simply not a TOTP code. An error means the stored
// secret itself is unusable.
func (m *totpManager) Verify(secret, code string, now time.Time) (bool, error) {
	if m == nil {
		return false, ErrEngineNotReady
	}
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits {
		return false, nil
	}

	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    m.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, otp.ErrValidateInputInvalidLength):
		return false, nil
	case errors.Is(err, otp.ErrValidateSecretInvalidBase32):
		return false, errInvalidSecret
	default:
		return false, fmt.Errorf("totp validate: %w", err)
	}
}
