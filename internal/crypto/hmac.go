package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// AdminAuth holds the shared credentials for HMAC-authenticated admin
// requests (config initialization, faucet, archive triggers).
type AdminAuth struct {
	Key    string // API key identifying the admin client
	Secret string // shared secret
}

// Headers returns the HTTP headers for an admin API request. The signature
// is HMAC-SHA256(secret, timestamp+method+path+body) encoded as base64.
//
// Returned header keys:
//   - X-SEKAD-API-KEY
//   - X-SEKAD-TIMESTAMP
//   - X-SEKAD-SIGNATURE
func (a *AdminAuth) Headers(method, path, body string) map[string]string {
	return a.HeadersAt(method, path, body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp
// (useful for deterministic testing).
func (a *AdminAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	message := ts + method + path + body
	sig := hmacSHA256Base64([]byte(a.Secret), message)

	return map[string]string{
		"X-SEKAD-API-KEY":   a.Key,
		"X-SEKAD-TIMESTAMP": ts,
		"X-SEKAD-SIGNATURE": sig,
	}
}

// Authenticate checks a request's key, timestamp, and signature. The
// timestamp must be within skew of now to limit replay of captured requests.
func (a *AdminAuth) Authenticate(key, timestamp, signature, method, path, body string, now time.Time, skew time.Duration) error {
	if !hmac.Equal([]byte(key), []byte(a.Key)) {
		return fmt.Errorf("crypto/hmac: unknown api key")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("crypto/hmac: invalid timestamp: %w", err)
	}
	drift := now.Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(skew.Seconds()) {
		return fmt.Errorf("crypto/hmac: timestamp outside allowed skew")
	}

	message := timestamp + method + path + body
	want := hmacSHA256Base64([]byte(a.Secret), message)
	if !hmac.Equal([]byte(signature), []byte(want)) {
		return fmt.Errorf("crypto/hmac: signature mismatch")
	}
	return nil
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (a *AdminAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("AdminAuth{key=%s, secret=%s}", redact(a.Key), redact(a.Secret))
}
