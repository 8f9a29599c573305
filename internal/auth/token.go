package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie carrying the session token.
const CookieName = "jwt"

const clockSkew = time.Second

// Session is what a verified token says about its bearer.
type Session struct {
	Subject  string
	IssuedAt time.Time
}

func init() {
	jwt.TimePrecision = time.Millisecond
}

// IssuedBefore reports whether a password change happened at or after the token was issued.
// Both times are compared in milliseconds, the precision of iat and of stored dates.
func (s Session) IssuedBefore(changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	return !changedAt.Truncate(time.Millisecond).Before(s.IssuedAt.Truncate(time.Millisecond))
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of s reading time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// Issue signs a token for subject valid for the configured ttl.
func (s *TokenService) Issue(subject string) (string, error) {
	return s.sign(subject, s.now())
}

// IssueAfter signs a token whose issue time is later than changedAt, so it outlives a password
// change stamped in the current millisecond.
func (s *TokenService) IssueAfter(subject string, changedAt *time.Time) (string, error) {
	now := s.now()
	if changedAt != nil {
		if floor := changedAt.Truncate(time.Millisecond).Add(time.Millisecond); now.Before(floor) {
			now = floor
		}
	}
	return s.sign(subject, now)
}

func (s *TokenService) sign(subject string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry.
func (s *TokenService) Verify(tokenString string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, apperror.Wrap(err, apperror.KindInvalidToken, http.StatusUnauthorized,
				"Your token has expired! Please log in again.")
		}
		return Session{}, apperror.Wrap(err, apperror.KindInvalidToken, http.StatusUnauthorized,
			"Invalid token. Please log in again!")
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return Session{}, apperror.InvalidToken("Invalid token. Please log in again!")
	}
	return Session{Subject: claims.Subject, IssuedAt: claims.IssuedAt.Time}, nil
}
