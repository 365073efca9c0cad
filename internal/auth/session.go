package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/sectorinv/internal/kvstore"
)

const sessionKeyPrefix = "session:"

// Session is a logged-in user: the raw bearer token and what it claims.
type Session struct {
	ID     string
	Token  string
	Claims *Claims
}

// Sessions keeps raw tokens in a key-value store, referenced from the
// browser by an opaque cookie.
type Sessions struct {
	kv         kvstore.Store
	cookieName string
	secure     bool
	now        func() time.Time
	logger     *slog.Logger
}

func NewSessions(kv kvstore.Store, cookieName string, secure bool, logger *slog.Logger) *Sessions {
	return &Sessions{kv: kv, cookieName: cookieName, secure: secure, now: time.Now, logger: logger}
}

// Login stores token and sets the session cookie. A token that cannot be
// decoded is rejected before anything is stored.
func (s *Sessions) Login(ctx context.Context, w http.ResponseWriter, token string) (*Session, error) {
	claims, err := Decode(token)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := s.kv.Put(ctx, sessionKeyPrefix+id, []byte(token)); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("user logged in", "user_id", claims.UserID, "role", claims.Papel)
	return &Session{ID: id, Token: token, Claims: claims}, nil
}

// Current returns the request's session, or nil when there is none. A stored
// token that no longer decodes, or whose exp has passed, is discarded.
func (s *Sessions) Current(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	token, err := s.kv.Get(ctx, sessionKeyPrefix+cookie.Value)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	claims, err := Decode(string(token))
	if err != nil {
		s.logger.Warn("discarding invalid stored token", "error", err)
		s.discard(ctx, cookie.Value)
		return nil, nil
	}
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		s.logger.Info("session expired", "user_id", claims.UserID)
		s.discard(ctx, cookie.Value)
		return nil, nil
	}

	return &Session{ID: cookie.Value, Token: string(token), Claims: claims}, nil
}

// Logout forgets the session and expires the cookie.
func (s *Sessions) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, sessionKeyPrefix+cookie.Value); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Sessions) discard(ctx context.Context, id string) {
	if err := s.kv.Delete(ctx, sessionKeyPrefix+id); err != nil {
		s.logger.Error("failed to delete session", "error", err)
	}
}
