package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifySignature checks that payload was signed with the shared
// secret. The header carries "sha256=<hex>"; bare hex without the
// prefix is accepted for older trigger installations. A missing secret
// is a configuration fault, not an authentication failure.
func VerifySignature(payload []byte, signatureHeader, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: webhook secret is not set", ErrConfiguration)
	}

	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return fmt.Errorf("%w: signature header missing", ErrAuthenticationFailed)
	}
	sig = strings.TrimPrefix(strings.ToLower(sig), "sha256=")

	decodedSig, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrAuthenticationFailed)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), decodedSig) {
		return fmt.Errorf("%w: signature mismatch", ErrAuthenticationFailed)
	}
	return nil
}

// SignPayload computes the signature header value for payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
