package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/ubadineke/sekadotfun-escrow/internal/crypto"
)

// maxAdminBody bounds how much request body the middleware will buffer for
// signature verification.
const maxAdminBody = 1 << 20

// allowedSkew is how far an admin request timestamp may drift from server
// time before it is rejected as a replay.
const allowedSkew = 30 * time.Second

// AdminAuth returns middleware that verifies HMAC-signed admin requests. The
// signature covers timestamp, method, path, and body. If auth is nil the
// middleware rejects everything; admin surfaces never run open.
func AdminAuth(auth *crypto.AdminAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeUnauthorized(w, "admin api disabled")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
			if err != nil {
				writeUnauthorized(w, "unreadable request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			err = auth.Authenticate(
				r.Header.Get("X-SEKAD-API-KEY"),
				r.Header.Get("X-SEKAD-TIMESTAMP"),
				r.Header.Get("X-SEKAD-SIGNATURE"),
				r.Method, r.URL.Path, string(body),
				time.Now(), allowedSkew,
			)
			if err != nil {
				writeUnauthorized(w, "invalid admin credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
