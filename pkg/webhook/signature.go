package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks an inbound webhook's HMAC-SHA256 signature
// against secret, in constant time. provided may carry a "v1=" prefix,
// which is stripped before comparison, matching the reference
// runtime's _verify_signature.
func VerifySignature(secret string, body []byte, provided string) bool {
	if secret == "" {
		return true
	}
	provided = strings.TrimPrefix(provided, "v1=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}
