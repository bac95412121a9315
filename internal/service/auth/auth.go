package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the JWT payload issued to dashboard users.
type Claims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
	Admin     bool      `json:"admin"`
}

// Service checks dashboard credentials and issues HS256 tokens. Users maps a
// lower-cased email to its bcrypt hash.
type Service struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string
	admins map[string]bool
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration, users map[string]string, admins []string) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		users:  make(map[string]string, len(users)),
		admins: make(map[string]bool, len(admins)),
		now:    time.Now,
	}
	for email, hash := range users {
		s.users[normalize(email)] = hash
	}
	for _, email := range admins {
		s.admins[normalize(email)] = true
	}
	return s
}

// Enabled is false when no signing secret is configured; the router then
// leaves the API open.
func (s *Service) Enabled() bool { return len(s.secret) > 0 }

func (s *Service) Login(email, password string) (Token, error) {
	email = normalize(email)
	hash, ok := s.users[email]
	if !ok {
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		Email: email,
		Admin: s.admins[email],
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, ExpiresAt: expiresAt, Email: email, Admin: claims.Admin}, nil
}

func (s *Service) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword is used by the hash-password command to produce AUTH_USERS entries.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
