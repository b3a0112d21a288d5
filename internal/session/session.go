package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	// durableCookie is the persistent tier: it survives a page reload so the
	// user does not re-authenticate. Holds identity + consent token.
	durableCookie = "hush_session"

	// tabCookie is the browser-session tier: it holds the optional
	// knowledge-base token and the token-expiry preference. MaxAge 0 makes
	// it a session cookie, so it does not outlive the browser.
	tabCookie = "hush_tab"
)

var (
	// ErrNotSignedIn is returned when no authenticated identity is stored.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrConsentRequired is returned when an inbox-read or generation call
	// is attempted without a stored consent token. Callers must refuse the
	// operation locally instead of issuing a network call.
	ErrConsentRequired = errors.New("consent token is missing, sign in again to provide consent")
)

// DefaultTokenExpiryHours applies until the user picks another value in
// settings.
const DefaultTokenExpiryHours = 24

// Identity is the authenticated user for the current session.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Manager is the single writer for session state. The identity and both
// tokens are read by many handlers but only mutated here, which keeps the
// tokens from drifting between components.
type Manager struct {
	durable *sessions.CookieStore
	tab     *sessions.CookieStore
}

// NewManager creates the two cookie tiers. secure should be false only for
// local development over plain HTTP.
func NewManager(secret string, secure bool) *Manager {
	durable := sessions.NewCookieStore([]byte(secret))
	durable.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	tab := sessions.NewCookieStore([]byte(secret))
	tab.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0, // session cookie: gone when the browser closes
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{durable: durable, tab: tab}
}

// SignIn stores the identity and consent token, overwriting any prior
// session. The mutation is mirrored to the durable cookie immediately so a
// reload reconstructs the same session.
func (m *Manager) SignIn(w http.ResponseWriter, r *http.Request, ident Identity, consentToken string) error {
	sess, _ := m.durable.Get(r, durableCookie)
	sess.Values["user_name"] = ident.Name
	sess.Values["user_email"] = ident.Email
	sess.Values["consent_token"] = consentToken
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SignOut clears the identity, the consent token and every session-scoped
// secondary token (the knowledge-base token included).
func (m *Manager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.durable.Get(r, durableCookie)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	tab, _ := m.tab.Get(r, tabCookie)
	tab.Values = map[interface{}]interface{}{}
	tab.Options.MaxAge = -1
	if err := tab.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear tab session: %w", err)
	}
	return nil
}

// Current returns the authenticated identity, or ErrNotSignedIn.
func (m *Manager) Current(r *http.Request) (Identity, error) {
	sess, _ := m.durable.Get(r, durableCookie)
	email, _ := sess.Values["user_email"].(string)
	if email == "" {
		return Identity{}, ErrNotSignedIn
	}
	name, _ := sess.Values["user_name"].(string)
	return Identity{Name: name, Email: email}, nil
}

// ConsentToken returns the stored inbox consent token, or ErrConsentRequired
// when it is absent.
func (m *Manager) ConsentToken(r *http.Request) (string, error) {
	sess, _ := m.durable.Get(r, durableCookie)
	token, _ := sess.Values["consent_token"].(string)
	if token == "" {
		return "", ErrConsentRequired
	}
	return token, nil
}

// SetKBToken stores the knowledge-base consent token in the tab tier.
func (m *Manager) SetKBToken(w http.ResponseWriter, r *http.Request, token string) error {
	tab, _ := m.tab.Get(r, tabCookie)
	tab.Values["kb_consent_token"] = token
	if err := tab.Save(r, w); err != nil {
		return fmt.Errorf("failed to save knowledge base token: %w", err)
	}
	return nil
}

// KBToken returns the stored knowledge-base token, or the empty string when
// the user has not consented. An empty result is not an error: generation
// simply proceeds without knowledge-base context.
func (m *Manager) KBToken(r *http.Request) string {
	tab, _ := m.tab.Get(r, tabCookie)
	token, _ := tab.Values["kb_consent_token"].(string)
	return token
}

// ClearKBToken forgets the knowledge-base token for this tab.
func (m *Manager) ClearKBToken(w http.ResponseWriter, r *http.Request) error {
	tab, _ := m.tab.Get(r, tabCookie)
	delete(tab.Values, "kb_consent_token")
	if err := tab.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear knowledge base token: %w", err)
	}
	return nil
}

// SetTokenExpiryHours stores the expiry preference applied at the next login.
func (m *Manager) SetTokenExpiryHours(w http.ResponseWriter, r *http.Request, hours int) error {
	tab, _ := m.tab.Get(r, tabCookie)
	tab.Values["token_expiry_hours"] = hours
	if err := tab.Save(r, w); err != nil {
		return fmt.Errorf("failed to save token expiry preference: %w", err)
	}
	return nil
}

// TokenExpiryHours returns the stored expiry preference, defaulting to
// DefaultTokenExpiryHours.
func (m *Manager) TokenExpiryHours(r *http.Request) int {
	tab, _ := m.tab.Get(r, tabCookie)
	hours, ok := tab.Values["token_expiry_hours"].(int)
	if !ok || hours <= 0 {
		return DefaultTokenExpiryHours
	}
	return hours
}
