package live

import (
	"encoding/gob"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/xid"
)

// sessionKey the key the session is stored under in the cookie.
const sessionKey = "_ls"

// Session what we will actually store across page loads.
type Session struct {
	ID string
}

// NewSession create a new session.
func NewSession() Session {
	return Session{ID: xid.New().String()}
}

func init() {
	gob.Register(Session{})
}

// SessionStore handles storing and retrieving sessions.
type SessionStore interface {
	Get(*http.Request) (Session, error)
	Save(http.ResponseWriter, *http.Request, Session) error
	Clear(http.ResponseWriter, *http.Request) error
}

var _ SessionStore = &CookieStore{}

// CookieStore a `gorilla/sessions` based cookie store.
type CookieStore struct {
	Store       *sessions.CookieStore
	sessionName string
}

// NewCookieStore create a new `gorilla/sessions` based cookie store.
func NewCookieStore(sessionName string, keyPairs ...[]byte) *CookieStore {
	s := sessions.NewCookieStore(keyPairs...)
	s.Options.HttpOnly = true
	s.Options.Secure = false
	s.Options.SameSite = http.SameSiteStrictMode

	return &CookieStore{
		Store:       s,
		sessionName: sessionName,
	}
}

// Get a session. A fresh session is returned when the request has none,
// along with any cookie decoding error.
func (c CookieStore) Get(r *http.Request) (Session, error) {
	session, err := c.Store.Get(r, c.sessionName)
	if err != nil {
		return NewSession(), err
	}
	sess, ok := session.Values[sessionKey].(Session)
	if !ok {
		return NewSession(), nil
	}
	return sess, nil
}

// Save a session.
func (c CookieStore) Save(w http.ResponseWriter, r *http.Request, session Session) error {
	s, err := c.Store.Get(r, c.sessionName)
	if err != nil && s == nil {
		return err
	}
	s.Values[sessionKey] = session
	return s.Save(r, w)
}

// Clear a session.
func (c CookieStore) Clear(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     c.sessionName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
	return nil
}
