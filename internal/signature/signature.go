// Package signature signs and verifies webhook payloads with HMAC-SHA256.
//
// Signatures always cover the exact bytes that travel on the wire. Callers
// verifying a webhook must pass the raw request body, never a re-encoded copy
// of the parsed JSON.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix is prepended to the hex digest in the X-Webhook-Signature header.
const Prefix = "sha256="

// Sign returns "sha256=<hex HMAC-SHA256(secret, payload)>".
func Sign(payload []byte, secret string) string {
	return Prefix + hex.EncodeToString(compute(payload, secret))
}

// Verify reports whether signature is a valid Sign output for payload and secret.
// The digest comparison is constant time.
func Verify(payload []byte, signature, secret string) bool {
	digest, ok := strings.CutPrefix(signature, Prefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	return hmac.Equal(got, compute(payload, secret))
}

func compute(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
