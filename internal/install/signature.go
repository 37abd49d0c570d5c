package install

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// VerifyCallbackQuery checks the provider's "hmac" parameter: hex HMAC-SHA256, keyed by the app
// secret, over the remaining parameters sorted by key and joined as k=v&k=v.
func VerifyCallbackQuery(q url.Values, secret string) bool {
	got := q.Get("hmac")
	if got == "" || secret == "" {
		return false
	}
	want, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalQuery(q)))
	return hmac.Equal(mac.Sum(nil), want)
}

// SignCallbackQuery returns the hex signature VerifyCallbackQuery expects for q.
func SignCallbackQuery(q url.Values, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalQuery(q)))
	return hex.EncodeToString(mac.Sum(nil))
}

func canonicalQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(q[k], ","))
	}
	return strings.Join(parts, "&")
}
