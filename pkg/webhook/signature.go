package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrSignatureInvalid is returned when the request's signature header does
// not match the HMAC-SHA256 of the raw body under the shared secret
// (spec §6: "a mismatch returns 401").
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// VerifySignature checks header against the HMAC-SHA256 of body under
// secret. header may carry a "sha256=" prefix (the common convention);
// it is stripped before comparison. An empty secret disables verification
// entirely — used only in local development, never in production config.
func VerifySignature(body []byte, header, secret string) error {
	if secret == "" {
		return nil
	}
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "sha256=")
	if header == "" {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(header)) {
		return ErrSignatureInvalid
	}
	return nil
}
