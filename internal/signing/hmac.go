// Package signing verifies the HMAC-SHA1 signature the hosting platform
// attaches to every webhook delivery.
package signing

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 -- wire-format requirement of the hosting platform's webhook signing scheme, not used for anything security-sensitive beyond matching it
	"encoding/hex"
)

// Prefix is prepended to the hex digest in the signature header, matching
// the hosting platform's "sha1=<hex>" convention.
const Prefix = "sha1="

// Sign computes the signature header value for body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is the correct HMAC-SHA1 signature of body
// under secret. Comparison is constant-time; a malformed or missing header
// is treated as a mismatch, never an error.
func Verify(secret, body []byte, header string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(header), []byte(expected))
}
