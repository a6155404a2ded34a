package logger

import (
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// The websocket route accepts credentials as query parameters because
// browser clients cannot set headers on the upgrade request, so both header
// and query redaction lists cover the same secrets.
var (
	sensitiveHeaders = map[string]struct{}{
		"authorization":    {},
		"cookie":           {},
		"x-api-key":        {},
		"x-user-signature": {},
	}
	sensitiveParams = map[string]struct{}{
		"api_key":   {},
		"signature": {},
	}
)

func redactHeaderValue(k, v string) string {
	if v == "" {
		return ""
	}
	if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok {
		return "<redacted>"
	}
	return v
}

// SafeHeaders returns a compact string representation of headers suitable for
// logging with sensitive values redacted. Keys are sorted so log lines are
// stable across requests.
func SafeHeaders(r *http.Request) string {
	parts := make([]string, 0, len(r.Header))
	for k, v := range r.Header {
		if len(v) == 0 {
			continue
		}
		parts = append(parts, k+"="+redactHeaderValue(k, v[0]))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// SafeQuery returns the request's query string with credential parameters
// redacted.
func SafeQuery(r *http.Request) string {
	q := r.URL.Query()
	if len(q) == 0 {
		return ""
	}
	parts := make([]string, 0, len(q))
	for k, v := range q {
		if len(v) == 0 {
			continue
		}
		val := v[0]
		if _, ok := sensitiveParams[strings.ToLower(k)]; ok {
			val = "<redacted>"
		}
		parts = append(parts, k+"="+val)
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// LogRequest logs a concise, safe summary of an incoming request.
func LogRequest(r *http.Request) {
	if Log == nil {
		return
	}
	Log.Info("incoming_request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("query", SafeQuery(r)),
		zap.String("remote", r.RemoteAddr),
		zap.String("headers", SafeHeaders(r)),
	)
}
