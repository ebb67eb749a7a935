package auth

import (
	"net/http"
	"time"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return "session"
	}
	return c.Name
}

// SetSessionCookie writes an HttpOnly SameSite=Strict cookie carrying token.
func (c CookieConfig) SetSessionCookie(w http.ResponseWriter, token string) {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func (c CookieConfig) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// SessionToken reads the session cookie from r.
func (c CookieConfig) SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}
