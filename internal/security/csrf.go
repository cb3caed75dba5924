package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
)

func NewRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func NewCSRFToken() (string, error) {
	return NewRandomString(24)
}

// RequireCSRFFromHeader enforces the double-submit pattern for cookie-based
// mutations: the X-CSRF-Token header must echo the csrf_token cookie.
func RequireCSRFFromHeader(r *http.Request) error {
	cookie := GetCookie(r, "csrf_token")
	head := r.Header.Get("X-CSRF-Token")
	if cookie == "" || head == "" || head != cookie {
		return fmt.Errorf("invalid csrf token")
	}
	return nil
}
