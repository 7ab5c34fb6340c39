package utils

import (
	"crypto/hmac"     // Token MAC
	"crypto/rand"     // Secret and salt generation
	"crypto/sha256"   // MAC hash
	"crypto/subtle"   // Constant time comparison
	"encoding/base64" // URL safe encoding
	"errors"          // Error construction
	"strings"         // Token splitting
)

// CSRFCookie is the name of the cookie carrying the anti-forgery secret
const CSRFCookie = "_csrf"

// CSRFHeaders are the request headers accepted for the anti-forgery token
var CSRFHeaders = []string{"X-CSRF-Token", "CSRF-Token", "X-XSRF-Token"}

var errMalformedCSRF = errors.New("malformed anti-forgery token")

// NewCSRFSecret returns a random value for the anti-forgery cookie
func NewCSRFSecret() (string, error) {
	return randomString(32)
}

// IssueCSRFToken derives a token from the cookie secret and the session token.
// Format: salt "." base64(HMAC(key, salt|secret|session)).
func IssueCSRFToken(key, secret, session string) (string, error) {
	salt, err := randomString(12)
	if err != nil {
		return "", err
	}
	return salt + "." + csrfMAC(key, salt, secret, session), nil
}

// VerifyCSRFToken checks token against the cookie secret and the session token
// it was issued for. A refreshed session token invalidates older tokens.
func VerifyCSRFToken(key, token, secret, session string) error {
	if token == "" || secret == "" || session == "" {
		return errMalformedCSRF
	}
	salt, mac, ok := strings.Cut(token, ".")
	if !ok || salt == "" || mac == "" {
		return errMalformedCSRF
	}
	want := csrfMAC(key, salt, secret, session)
	if subtle.ConstantTimeCompare([]byte(mac), []byte(want)) != 1 {
		return errors.New("anti-forgery token mismatch")
	}
	return nil
}

func csrfMAC(key, salt, secret, session string) string {
	sessionSum := sha256.Sum256([]byte(session))
	m := hmac.New(sha256.New, []byte("csrf:"+key))
	m.Write([]byte(salt))
	m.Write([]byte{0})
	m.Write([]byte(secret))
	m.Write([]byte{0})
	m.Write(sessionSum[:])
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
