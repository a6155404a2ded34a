package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pixchat/pkg/config"
	"pixchat/pkg/logger"
	"pixchat/pkg/utils"
)

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior. Put here so limiter.go
// and gateway.go can reference the shared type.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

type ctxUserKey struct{}

// userCredentials pulls the identity pair from headers, falling back to
// query params for websocket clients that cannot set custom headers.
func userCredentials(r *http.Request) (userID, sig string) {
	userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
	sig = strings.TrimSpace(r.Header.Get("X-User-Signature"))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if sig == "" {
		sig = strings.TrimSpace(r.URL.Query().Get("signature"))
	}
	return userID, sig
}

// RequireSignedUser verifies HMAC identity headers and injects the verified
// user id into the request context. Every chat operation acts on behalf of
// a user, so unlike the gateway there is no anonymous path: backend and
// admin callers may assert an id without a signature, everyone else must
// present one.
func RequireSignedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role-Name")
		userID, sig := userCredentials(r)

		if sig == "" && (role == "backend" || role == "admin") {
			if userID == "" {
				utils.JSONError(w, http.StatusBadRequest, "user id required")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
			return
		}

		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
			utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no signing secrets available")
			return
		}

		// Try all configured signing keys.
		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", zap.String("user", userID))
			utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, id)
}

// UserIDFromContext returns the verified user id or empty string.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxUserKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
