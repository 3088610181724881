package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// HeaderPrefix is the scheme prefix carried in the X-Signature-256 header
	HeaderPrefix = "sha256="

	// MinSecretBytes is the minimum accepted secret size (128 bits)
	MinSecretBytes = 16

	// MaxSecretBytes is the maximum accepted secret size (512 bits)
	MaxSecretBytes = 64
)

/* Signing is a pure function over the exact bytes that go on the wire.
 * Receivers recompute the HMAC over the received body and compare it
 * against the X-Signature-256 header
 */

// Sign computes the hex HMAC-SHA256 of the payload under the secret
func Sign(payload []byte, secret []byte) (string, error) {
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// SignHeader returns the full X-Signature-256 header value: sha256=<hex>
func SignHeader(payload []byte, secret []byte) (string, error) {
	sig, err := Sign(payload, secret)
	if err != nil {
		return "", err
	}
	return HeaderPrefix + sig, nil
}

// Verify checks a hex signature against the payload using
// constant-time comparison to avoid timing side-channels
func Verify(payload []byte, signatureHex string, secret []byte) (bool, error) {
	expected, err := Sign(payload, secret)
	if err != nil {
		return false, err
	}

	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}

	want, err := hex.DecodeString(expected)
	if err != nil {
		return false, fmt.Errorf("decoding calculated signature: %w", err)
	}

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// VerifyHeader checks a full sha256=<hex> header value against the payload
func VerifyHeader(payload []byte, header string, secret []byte) (bool, error) {
	if !strings.HasPrefix(header, HeaderPrefix) {
		return false, fmt.Errorf("signature header must start with %s", HeaderPrefix)
	}
	return Verify(payload, strings.TrimPrefix(header, HeaderPrefix), secret)
}

// ValidateSecret checks the secret size bounds
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretBytes || len(secret) > MaxSecretBytes {
		return fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}
	return nil
}

// GenerateSecret creates a new cryptographically secure signing secret
// between MinSecretBytes and MaxSecretBytes in size. Used by the admin
// flow when provisioning a tenant.
func GenerateSecret(size int) (string, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return "", fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	return base64.RawStdEncoding.EncodeToString(bytes)[:size], nil
}
