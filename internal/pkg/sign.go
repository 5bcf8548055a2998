package pkg

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// Sign returns the base64url-encoded HMAC-SHA256 of value under secret.
func Sign(value, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SignedValue returns value + "." + Sign(value, secret).
func SignedValue(value, secret string) string {
	return value + "." + Sign(value, secret)
}

// VerifySigned splits a SignedValue and checks its signature in constant time.
// It returns the payload and whether the signature is valid.
func VerifySigned(signed, secret string) (string, bool) {
	value, sig, ok := strings.Cut(signed, ".")
	if !ok || value == "" || sig == "" {
		return "", false
	}
	if !ConstantTimeEqual(sig, Sign(value, secret)) {
		return "", false
	}
	return value, true
}

// ConstantTimeEqual compares two strings without leaking timing information.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
