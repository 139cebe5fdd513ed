package provider

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

const (
	ReasonMissing       = "missing"
	ReasonMismatch      = "mismatch"
	ReasonNotConfigured = "not_configured"
)

type VerifyResult struct {
	Valid     bool
	Reason    string
	Expected  string
	Received  string
	Canonical string
}

// Sign returns the lowercase hex HMAC-SHA512 of canonical keyed by secret.
func Sign(canonical, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignParams canonicalizes params and signs the result.
func SignParams(params map[string]string, secret string) string {
	return Sign(Canonicalize(params), secret)
}

func Verify(params map[string]string, secret string) VerifyResult {
	received := strings.TrimSpace(params[ParamSecureHash])
	if received == "" {
		return VerifyResult{Reason: ReasonMissing}
	}
	if secret == "" {
		return VerifyResult{Reason: ReasonNotConfigured, Received: received}
	}

	canonical := Canonicalize(params)
	expected := Sign(canonical, secret)
	result := VerifyResult{
		Expected:  expected,
		Received:  received,
		Canonical: canonical,
	}

	candidate, err := hex.DecodeString(received)
	if err != nil {
		result.Reason = ReasonMismatch
		return result
	}
	expectedRaw, _ := hex.DecodeString(expected)
	if !hmac.Equal(candidate, expectedRaw) {
		result.Reason = ReasonMismatch
		return result
	}

	result.Valid = true
	return result
}
