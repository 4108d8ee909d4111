// Package auth tracks the signed-in user. Sessions are HS256 JWTs whose
// subject is the owning user id used to scope remote rows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const tokenKey = "session_token"

// ErrInvalidToken is returned by SignIn for malformed, expired or
// wrongly-signed tokens.
var ErrInvalidToken = errors.New("invalid session token")

// User is the authenticated owner.
type User struct {
	ID    string
	Email string
}

// Event is delivered on every sign-in or sign-out transition. User is nil
// after a sign-out.
type Event struct {
	User *User
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	Meta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
	DeleteMeta(ctx context.Context, key string) error
}

// Claims are the JWT claims of a session token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Session holds the current user and fans out auth transitions.
type Session struct {
	mu      sync.Mutex
	secret  []byte
	tokens  TokenStore
	log     *zap.SugaredLogger
	user    *User
	expires time.Time
	subs    map[int]func(Event)
	nextSub int
	now     func() time.Time
}

// NewSession creates a signed-out session.
func NewSession(secret string, tokens TokenStore, log *zap.SugaredLogger) *Session {
	return &Session{
		secret: []byte(secret),
		tokens: tokens,
		log:    log,
		subs:   make(map[int]func(Event)),
		now:    time.Now,
	}
}

// Issue mints a session token for userID valid for ttl.
func Issue(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Session) parse(token string) (*User, time.Time, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, time.Time{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &User{ID: claims.Subject, Email: claims.Email}, exp, nil
}

// Restore reloads a persisted token without firing a transition. An
// invalid or expired token is discarded.
func (s *Session) Restore(ctx context.Context) error {
	token, ok, err := s.tokens.Meta(ctx, tokenKey)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil
	}
	user, exp, err := s.parse(token)
	if err != nil {
		s.log.Infow("discarding stored session", "error", err)
		return s.tokens.DeleteMeta(ctx, tokenKey)
	}

	s.mu.Lock()
	s.user, s.expires = user, exp
	s.mu.Unlock()
	return nil
}

// CurrentUser returns the signed-in user, or nil when signed out or the
// session has expired.
func (s *Session) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	if !s.expires.IsZero() && !s.now().Before(s.expires) {
		return nil
	}
	u := *s.user
	return &u
}

// SignIn validates token, persists it and notifies subscribers when the
// signed-in user actually changes.
func (s *Session) SignIn(ctx context.Context, token string) (*User, error) {
	user, exp, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.SetMeta(ctx, tokenKey, token); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	prev := s.user
	s.user, s.expires = user, exp
	s.mu.Unlock()

	s.log.Infow("signed in", "user", user.ID)
	if prev == nil || prev.ID != user.ID {
		s.notify(Event{User: &User{ID: user.ID, Email: user.Email}})
	}
	u := *user
	return &u, nil
}

// SignOut forgets the session and notifies subscribers if one was active.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.tokens.DeleteMeta(ctx, tokenKey); err != nil {
		return fmt.Errorf("forget session: %w", err)
	}

	s.mu.Lock()
	prev := s.user
	s.user, s.expires = nil, time.Time{}
	s.mu.Unlock()

	if prev != nil {
		s.log.Infow("signed out", "user", prev.ID)
		s.notify(Event{})
	}
	return nil
}

// Subscribe registers fn for auth transitions and returns its unsubscribe.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
