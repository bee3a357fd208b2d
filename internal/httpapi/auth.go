package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	purposeSession      = "session"
	purposeEmailConfirm = "email-confirm"

	tokenIssuer     = "lockbox"
	emailConfirmTTL = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 tokens. The subject is always a user id;
// the purpose claim keeps a confirmation link from working as a session.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, sessionTTL time.Duration) *Tokens {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: sessionTTL, now: time.Now}
}

func (t *Tokens) IssueSession(userID string) (string, error) {
	return t.issue(userID, purposeSession, t.ttl)
}

func (t *Tokens) IssueEmailConfirm(userID string) (string, error) {
	return t.issue(userID, purposeEmailConfirm, emailConfirmTTL)
}

func (t *Tokens) issue(userID, purpose string, ttl time.Duration) (string, error) {
	now := t.now()
	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Parse verifies a token for purpose and returns its subject.
func (t *Tokens) Parse(token, purpose string) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Purpose != purpose || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
