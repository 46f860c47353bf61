package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the HMAC-SHA256 of payload as "sha256=<hex>", the value of
// the signature header.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header against payload in constant time.
// Receivers use it to authenticate deliveries.
func Verify(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(Sign(secret, payload)))
}
