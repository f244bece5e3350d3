package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	sessionCookie = "session"
	adminCookie   = "admin_token"
)

// Cookies writes and reads the student session cookie and the admin token
// cookie. The session token is signed so a tampered value is treated as
// missing before it reaches the database.
type Cookies struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewCookies creates a Cookies signing with hashKey. maxAge bounds how long a
// signed value is accepted and should match the session TTL.
func NewCookies(hashKey []byte, maxAge time.Duration, secure bool) *Cookies {
	codec := securecookie.New(hashKey, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(maxAge / time.Second))
	return &Cookies{codec: codec, secure: secure}
}

// SetSession stores token in the session cookie until expires.
func (c *Cookies) SetSession(w http.ResponseWriter, token string, expires time.Time) error {
	value, err := c.codec.Encode(sessionCookie, token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Session returns the session token, or "" when the cookie is missing or
// does not verify.
func (c *Cookies) Session(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	var token string
	if err := c.codec.Decode(sessionCookie, cookie.Value, &token); err != nil {
		return ""
	}
	return token
}

// ClearSession deletes the session cookie.
func (c *Cookies) ClearSession(w http.ResponseWriter) {
	c.clear(w, sessionCookie, http.SameSiteStrictMode)
}

// SetAdmin stores the admin JWT.
func (c *Cookies) SetAdmin(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge / time.Second),
	})
}

// ClearAdmin deletes the admin cookie.
func (c *Cookies) ClearAdmin(w http.ResponseWriter) {
	c.clear(w, adminCookie, http.SameSiteLaxMode)
}

func (c *Cookies) clear(w http.ResponseWriter, name string, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: sameSite,
		MaxAge:   -1,
	})
}
