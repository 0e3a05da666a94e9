package wallet

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "capsule_session"
	accountKey  = "account"

	// sessionMaxAge is how long a connected account stays connected (30 days).
	sessionMaxAge = 30 * 24 * 60 * 60
)

// Provider reports which account, if any, is connected for a request.
type Provider interface {
	Account(r *http.Request) (Address, bool)
}

// CookieSessions keeps the connected account in an HMAC-signed cookie.
// The same session carries one-shot flash messages for form redirects.
type CookieSessions struct {
	store *sessions.CookieStore
}

var _ Provider = (*CookieSessions)(nil)

// NewCookieSessions creates a session provider signing cookies with secret.
func NewCookieSessions(secret []byte, secure bool) *CookieSessions {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieSessions{store: store}
}

// session returns the request's session. Get still returns a fresh session
// when the cookie fails verification, so that error is dropped.
func (c *CookieSessions) session(r *http.Request) *sessions.Session {
	s, _ := c.store.Get(r, sessionName)
	return s
}

// Account returns the connected account.
func (c *CookieSessions) Account(r *http.Request) (Address, bool) {
	raw, ok := c.session(r).Values[accountKey].(string)
	if !ok {
		return Address{}, false
	}
	addr, err := ParseAddress(raw)
	if err != nil {
		return Address{}, false
	}
	return addr, true
}

// Connect records addr as the request's connected account.
func (c *CookieSessions) Connect(w http.ResponseWriter, r *http.Request, addr Address) error {
	s := c.session(r)
	s.Values[accountKey] = addr.String()
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Disconnect forgets the connected account.
func (c *CookieSessions) Disconnect(w http.ResponseWriter, r *http.Request) error {
	s := c.session(r)
	delete(s.Values, accountKey)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// AddFlash queues a message to show on the next page render.
func (c *CookieSessions) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	s := c.session(r)
	s.AddFlash(msg)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Flashes returns and clears queued messages. It must be called before the
// response body is written.
func (c *CookieSessions) Flashes(w http.ResponseWriter, r *http.Request) []string {
	s := c.session(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(string); ok {
			msgs = append(msgs, m)
		}
	}
	_ = s.Save(r, w)
	return msgs
}
