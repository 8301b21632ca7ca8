// Package auth is the authentication backend: users with bcrypt hashes and
// HS256 session tokens, revocable through the shared cache.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"hostel_finder/internal/adapters/observability"
	"hostel_finder/internal/domain"
)

const issuer = "hostel-finder"

// compared against when the email is unknown so both paths cost one bcrypt check
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	users  domain.UserRepository
	cache  domain.Cache
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	listeners map[int]func(domain.SessionEvent)
	nextID    int
}

func New(users domain.UserRepository, cache domain.Cache, secret string, ttl time.Duration) (*Service, error) {
	if len(secret) < 16 {
		return nil, errors.New("JWT secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:     users,
		cache:     cache,
		secret:    []byte(secret),
		ttl:       ttl,
		now:       time.Now,
		listeners: map[int]func(domain.SessionEvent){},
	}, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Register creates a user and returns its id.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	return s.users.CreateUser(ctx, domain.User{Email: normEmail(email), PasswordHash: hash})
}

func (s *Service) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	u, err := s.users.FindUserByEmail(ctx, normEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign token: %w", err)
	}

	s.emit(domain.SessionEvent{Type: domain.SessionSignedIn, UserID: u.ID, At: now})
	return domain.Session{UserID: u.ID, Email: u.Email, Token: signed, ExpiresAt: exp}, nil
}

// Verify accepts a token that is well-signed, unexpired and not revoked.
func (s *Service) Verify(ctx context.Context, token string) (domain.Session, error) {
	c, err := s.parse(token, true)
	if err != nil {
		return domain.Session{}, domain.ErrInvalidToken
	}
	var revoked bool
	ok, err := s.cache.Get(ctx, revokedKey(c.ID), &revoked)
	if err != nil {
		return domain.Session{}, fmt.Errorf("check revocation: %w", err)
	}
	if ok && revoked {
		return domain.Session{}, domain.ErrInvalidToken
	}
	return domain.Session{UserID: c.Subject, Email: c.Email, Token: token, ExpiresAt: c.ExpiresAt.Time}, nil
}

// SignOut revokes token until it would have expired. Expired or garbage tokens are a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token, false)
	if err != nil {
		return nil
	}
	remaining := c.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	ttl := int(remaining / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	if err := s.cache.Set(ctx, revokedKey(c.ID), true, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.emit(domain.SessionEvent{Type: domain.SessionSignedOut, UserID: c.Subject, At: s.now()})
	return nil
}

// OnSessionChange registers fn for sign-in and sign-out events.
func (s *Service) OnSessionChange(fn func(domain.SessionEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) emit(ev domain.SessionEvent) {
	observability.ObserveSession(string(ev.Type))
	log.Info().Str("event", string(ev.Type)).Str("user", ev.UserID).Msg("session change")

	s.mu.RLock()
	fns := make([]func(domain.SessionEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Service) parse(token string, checkExpiry bool) (*claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if !checkExpiry && errors.Is(err, jwt.ErrTokenExpired) {
			return c, nil
		}
		return nil, err
	}
	if c.Subject == "" || c.ID == "" {
		return nil, errors.New("token missing subject or id")
	}
	return c, nil
}

func revokedKey(jti string) string { return "revoked:" + jti }

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
