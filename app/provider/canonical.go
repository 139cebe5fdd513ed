package provider

import (
	"net/url"
	"sort"
	"strings"
)

const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// Canonicalize builds the exact string that is signed: reserved hash keys are
// dropped, keys are sorted byte-wise, values are encoded with EncodeValue and
// pairs are joined with "&".
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if isReservedKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(EncodeValue(params[k]))
	}
	return b.String()
}

// EncodeValue is the single value encoding shared by signing, verification
// and the outbound query string. Space is encoded as "+".
func EncodeValue(value string) string {
	return url.QueryEscape(value)
}

func isReservedKey(key string) bool {
	return key == ParamSecureHash || key == ParamSecureHashType
}
