package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/model"
)

// TokenType distinguishes access tokens from refresh tokens so neither can
// stand in for the other.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrMalformedToken   = errors.New("token malformed")
	ErrWrongTokenType   = errors.New("wrong token type")
)

// Claims is the payload of both token types. Refresh tokens carry only
// UserID so the role is always re-read from the store on refresh.
type Claims struct {
	UserID string     `json:"userId"`
	Email  string     `json:"email,omitempty"`
	Role   model.Role `json:"role,omitempty"`
	Type   TokenType  `json:"typ"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Issuer mints and verifies HS256 tokens with one process-wide secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer. An empty secret is rejected so a
// misconfigured process fails at startup rather than on first login.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("invalid token ttl: access=%s refresh=%s", accessTTL, refreshTTL)
	}
	return &Issuer{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}, nil
}

// WithClock replaces the issuer's clock. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken signs a short-lived token carrying {userId, email, role}.
func (i *Issuer) IssueAccessToken(userID, email string, role model.Role) (IssuedToken, error) {
	return i.sign(Claims{UserID: userID, Email: email, Role: role, Type: TokenAccess}, i.accessTTL)
}

// IssueRefreshToken signs a long-lived token carrying only {userId}.
func (i *Issuer) IssueRefreshToken(userID string) (IssuedToken, error) {
	return i.sign(Claims{UserID: userID, Type: TokenRefresh}, i.refreshTTL)
}

func (i *Issuer) sign(c Claims, ttl time.Duration) (IssuedToken, error) {
	now := i.now().UTC()
	exp := now.Add(ttl).Truncate(time.Second)
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks signature and expiry and returns the embedded claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidSignature
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case err == nil && tok.Valid:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	default:
		return nil, ErrInvalidSignature
	}
	if claims.UserID == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	return i.verifyType(token, TokenAccess)
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return i.verifyType(token, TokenRefresh)
}

func (i *Issuer) verifyType(token string, want TokenType) (*Claims, error) {
	c, err := i.Verify(token)
	if err != nil {
		return nil, err
	}
	if c.Type != want {
		return nil, ErrWrongTokenType
	}
	return c, nil
}
