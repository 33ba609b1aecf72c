package session

import (
	"net/http"
	"time"

	"countdown.share/internal/crypto"
)

// DefaultCookieMaxAge keeps a countdown around for a year of inactivity.
const DefaultCookieMaxAge = 365 * 24 * time.Hour

var _ Storage = (*CookieStorage)(nil)

// CookieStorage is a per-request Storage backed by the browser's cookies.
// Values are sealed with the server secret; anything that fails to open is
// treated as absent.
type CookieStorage struct {
	w       http.ResponseWriter
	r       *http.Request
	secret  string
	maxAge  time.Duration
	secure  bool
	written map[string]string
}

// NewCookieStorage binds storage to one request/response pair.
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secret string, maxAge time.Duration) *CookieStorage {
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &CookieStorage{
		w:       w,
		r:       r,
		secret:  secret,
		maxAge:  maxAge,
		secure:  r.TLS != nil,
		written: make(map[string]string),
	}
}

func (c *CookieStorage) Get(key string) (string, bool) {
	if v, ok := c.written[key]; ok {
		return v, true
	}

	cookie, err := c.r.Cookie(key)
	if err != nil {
		return "", false
	}
	plain, err := crypto.Open(cookie.Value, c.secret, key)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

func (c *CookieStorage) Set(key, value string) error {
	sealed, err := crypto.Seal([]byte(value), c.secret, key)
	if err != nil {
		return err
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.written[key] = value
	return nil
}
