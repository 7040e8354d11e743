// Package session manages operator sessions for the console. The bearer
// token issued by the CRM backend and the operator's cached identity live in
// an encrypted cookie; logout is client-side only, matching the backend's
// stateless token model.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/upstream"
)

// ErrNoSession is returned when the request carries no usable session.
var ErrNoSession = errors.New("no active session")

const (
	keyToken    = "token"
	keyUserID   = "user_id"
	keyUsername = "username"
	keyEmail    = "email"
)

// Operator is the resolved identity behind an authenticated request.
type Operator struct {
	UserID   string
	Username string
	Email    string
	Token    string
}

// Manager owns the cookie store and the auth flows against the upstream API.
type Manager struct {
	store      *sessions.CookieStore
	client     *upstream.Client
	cookieName string
}

// NewManager builds a Manager. blockKey may be empty, which disables cookie
// value encryption (dev only); hashKey must be set.
func NewManager(client *upstream.Client, hashKey, blockKey []byte, cookieName string, maxAge time.Duration) *Manager {
	var store *sessions.CookieStore
	if len(blockKey) > 0 {
		store = sessions.NewCookieStore(hashKey, blockKey)
	} else {
		store = sessions.NewCookieStore(hashKey)
	}
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store, client: client, cookieName: cookieName}
}

// Login authenticates against the upstream, resolves the operator identity,
// and persists both in the session cookie.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, email, password string) (*upstream.User, error) {
	token, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user, err := m.client.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := m.save(w, r, token, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Signup creates the account upstream and then logs the new operator in,
// mirroring the original signup-then-login flow.
func (m *Manager) Signup(ctx context.Context, w http.ResponseWriter, r *http.Request, req upstream.SignupRequest) (*upstream.User, error) {
	if _, err := m.client.Signup(ctx, req); err != nil {
		return nil, err
	}
	return m.Login(ctx, w, r, req.Email, req.Password)
}

// Logout discards the session cookie. No upstream call is made; the token
// simply stops being presented.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	m.Clear(w, r)
}

// Clear drops the session. Also invoked whenever any upstream call comes
// back 401, which forces the operator through login again.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	sess, _ := m.store.Get(r, m.cookieName)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

// Current resolves the operator behind the request. A missing cookie, a
// missing token, or a token whose exp claim has passed all read as no
// session.
func (m *Manager) Current(r *http.Request) (*Operator, error) {
	sess, err := m.store.Get(r, m.cookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	token, _ := sess.Values[keyToken].(string)
	if token == "" {
		return nil, ErrNoSession
	}
	if exp, err := TokenExpiry(token); err == nil && !exp.IsZero() && time.Now().After(exp) {
		return nil, ErrNoSession
	}

	op := &Operator{Token: token}
	op.UserID, _ = sess.Values[keyUserID].(string)
	op.Username, _ = sess.Values[keyUsername].(string)
	op.Email, _ = sess.Values[keyEmail].(string)
	return op, nil
}

// UpdateProfile pushes profile changes upstream and refreshes the cached
// identity in the cookie.
func (m *Manager) UpdateProfile(ctx context.Context, w http.ResponseWriter, r *http.Request, update upstream.ProfileUpdate) (*upstream.User, error) {
	op, err := m.Current(r)
	if err != nil {
		return nil, err
	}
	user, err := m.client.UpdateProfile(ctx, op.Token, update)
	if err != nil {
		return nil, err
	}
	if err := m.save(w, r, op.Token, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *Manager) save(w http.ResponseWriter, r *http.Request, token string, user *upstream.User) error {
	sess, _ := m.store.Get(r, m.cookieName)
	sess.Values[keyToken] = token
	sess.Values[keyUserID] = user.ID
	sess.Values[keyUsername] = user.Username
	sess.Values[keyEmail] = user.Email
	return sess.Save(r, w)
}
