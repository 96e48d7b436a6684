package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongTokenKind = errors.New("wrong token kind")
)

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
	TokenConfirm TokenKind = "confirm"
)

// Claims are carried by every token the local provider signs. The JWT ID is
// unique per token so it can be revoked individually; SessionID ties an
// access token to the refresh token it was issued with.
type Claims struct {
	jwt.RegisteredClaims
	Kind      TokenKind `json:"kind"`
	Email     string    `json:"email,omitempty"`
	SessionID string    `json:"sid,omitempty"`
}

type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	confirmTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret, issuer string, accessTTL, refreshTTL, confirmTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		confirmTTL: confirmTTL,
		now:        time.Now,
	}
}

// WithClock replaces the issuer's time source.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

func (t *TokenIssuer) ttl(kind TokenKind) time.Duration {
	switch kind {
	case TokenRefresh:
		return t.refreshTTL
	case TokenConfirm:
		return t.confirmTTL
	default:
		return t.accessTTL
	}
}

// RefreshTTL is how long a session can be kept alive without signing in again.
func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

// Issue signs a token of the given kind for a user.
func (t *TokenIssuer) Issue(kind TokenKind, userID, email, sessionID string) (string, *Claims, error) {
	now := t.now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl(kind))),
		},
		Kind:      kind,
		Email:     email,
		SessionID: sessionID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer, expiry and kind.
func (t *TokenIssuer) Parse(tokenString string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
