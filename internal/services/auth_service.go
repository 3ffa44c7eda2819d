// Package services – AuthService
//
// AuthService handles signup, credential lookup and bearer tokens. Passwords
// are compared by exact equality at the store, as the persisted schema
// requires; tokens are HS256 JWTs carrying the user id as subject.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/repo"
)

// Claims is the JWT payload issued at login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	UserID   uint
	Username string
}

// AuthService provides signup, login and token verification.
type AuthService struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration

	// Now is the clock used for token timestamps.
	Now func() time.Time
}

// NewAuthService constructs an AuthService. A non-positive ttl means 24h.
func NewAuthService(db *gorm.DB, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{DB: db, Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

// Signup creates a user. An existing username is left untouched and
// reported as ErrUsernameTaken.
func (s *AuthService) Signup(ctx context.Context, username, password string) error {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Signup",
		trace.WithAttributes(attribute.String("user.name", username)))
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrInvalidUser
	}
	created, err := repo.CreateUser(ctx, s.DB, username, password)
	if err != nil {
		return storeErr(err, nil)
	}
	if !created {
		return ErrUsernameTaken
	}
	return nil
}

// Login looks the credentials up verbatim and returns the user with a signed
// token. Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login",
		trace.WithAttributes(attribute.String("user.name", username)))
	defer span.End()

	u, err := repo.AuthenticateUser(ctx, s.DB, username, password)
	if err != nil {
		return nil, "", storeErr(err, ErrInvalidCredentials)
	}
	tok, err := s.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, tok, nil
}

// IssueToken signs a token for u.
func (s *AuthService) IssueToken(u *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// ParseToken verifies tok and returns the identity it carries.
func (s *AuthService) ParseToken(tok string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.Join(ErrInvalidToken, err)
		}
		return Identity{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: uint(id), Username: claims.Username}, nil
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
