package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perr "contribot/internal/platform/errors"
	pnet "contribot/internal/platform/net"
	phttp "contribot/internal/platform/net/http"
)

// TriggerKeys maps a caller label to its shared secret
type TriggerKeys map[string]string

// ParseTriggerKeys reads "label:secret" pairs; a bare secret is labelled "default"
func ParseTriggerKeys(pairs []string) TriggerKeys {
	out := TriggerKeys{}
	for _, p := range pairs {
		label, secret, ok := strings.Cut(p, ":")
		if !ok {
			label, secret = "default", p
		}
		label, secret = strings.TrimSpace(label), strings.TrimSpace(secret)
		if secret != "" {
			out[label] = secret
		}
	}
	return out
}

// match returns the caller label for a presented bearer token
func (k TriggerKeys) match(token string) (string, bool) {
	for label, secret := range k {
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
			return label, true
		}
	}
	return "", false
}

// TriggerAuth requires "Authorization: Bearer <key>" matching one of keys.
// With no keys configured every request is rejected
func TriggerAuth(keys TriggerKeys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				phttp.RespondError(w, r, perr.Unauthorizedf("missing trigger key"))
				return
			}
			caller, ok := keys.match(strings.TrimSpace(token))
			if !ok {
				phttp.RespondError(w, r, perr.Forbiddenf("unknown trigger key"))
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithCaller(r.Context(), caller)))
		})
	}
}
