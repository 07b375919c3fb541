package admin

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultSessionTTL is how long a session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// dummyHash is compared against when the username is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

// Config holds the session signing parameters.
type Config struct {
	Secret     []byte
	SessionTTL time.Duration
}

// claims is the JWT payload of a session token.
type claims struct {
	AdminID  string `json:"adminId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service checks credentials and signs session tokens.
type Service struct {
	admins Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates an admin Service. The secret must not be empty.
func NewService(cfg Config, admins Repository) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		admins: admins,
		secret: cfg.Secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login checks the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *Session, error) {
	a, err := s.admins.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		zctx.From(ctx).Info("Login rejected", zap.String("username", username))
		return "", nil, ErrInvalidCredentials
	case err != nil:
		return "", nil, errors.Wrap(err, "find admin")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		zctx.From(ctx).Info("Login rejected", zap.String("username", username))
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	sess := &Session{
		AdminID:   a.ID,
		Username:  a.Username,
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	token, err := s.sign(sess, now)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign session")
	}
	zctx.From(ctx).Info("Admin logged in", zap.String("username", a.Username))
	return token, sess, nil
}

func (s *Service) sign(sess *Session, now time.Time) (string, error) {
	c := claims{
		AdminID:  sess.AdminID,
		Username: sess.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sess.AdminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Verify parses a session token. Any failure is ErrUnauthenticated.
func (s *Service) Verify(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	if c.AdminID == "" || c.Username == "" {
		return nil, ErrUnauthenticated
	}
	return &Session{
		AdminID:   c.AdminID,
		Username:  c.Username,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

type sessionKey struct{}

// WithSession returns a context carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session stored in ctx, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok && sess != nil
}
