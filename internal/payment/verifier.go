package payment

import (
	"crypto/hmac"   // Keyed hashing
	"crypto/sha256" // HMAC hash function
	"encoding/hex"  // Hex encoding of signatures
	"errors"
	"strconv" // Amount canonicalization
)

// ErrSecretMissing means the gateway secret is not configured, so signatures
// cannot be checked. Callers must reject the request, never skip the check.
var ErrSecretMissing = errors.New("payment gateway secret is not configured")

// Verifier checks payment-gateway signatures. The gateway signs the string
// "<reference>|<amount>" with HMAC-SHA256 and sends the hex digest.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier with the server-held gateway secret.
func NewVerifier(secret string) Verifier {
	return Verifier{secret: secret}
}

// SignaturePayload builds the canonical signed string for a payment.
// The amount is rendered with the shortest decimal representation so that
// 500 signs as "500" and 500.5 as "500.5".
func SignaturePayload(reference string, amount float64) string {
	return reference + "|" + strconv.FormatFloat(amount, 'f', -1, 64)
}

// Verify reports whether the claimed hex signature matches the expected
// HMAC over reference and amount. Pure function of its inputs.
func (v Verifier) Verify(reference string, amount float64, signature string) (bool, error) {
	if v.secret == "" {
		return false, ErrSecretMissing
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(SignaturePayload(reference, amount)))
	expected := hex.EncodeToString(mac.Sum(nil))
	// Constant-time comparison
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
