package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the only role the operator API knows.
const RoleOperator = "operator"

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrBadAdminKey  = errors.New("admin key mismatch")
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 operator tokens.
type Signer struct {
	Issuer     string
	Key        []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

// NewSigner creates a signer.
func NewSigner(issuer, key string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{Issuer: issuer, Key: []byte(key), AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

// CheckAdminKey compares a presented key with the configured one in constant
// time. An empty configured key disables token issuance.
func CheckAdminKey(configured, presented string) error {
	if configured == "" || subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return ErrBadAdminKey
	}
	return nil
}

// Issue issues signed access and refresh tokens for subject.
func (s *Signer) Issue(subject string) (TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, err := s.sign(subject, TypeAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(subject, TypeRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *Signer) sign(subject, typ string, issuedAt, exp time.Time) (string, error) {
	claims := Claims{
		Role: RoleOperator,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
}

// Parse validates an access token and returns its claims.
func (s *Signer) Parse(tokenStr string) (Claims, error) {
	return s.parse(tokenStr, TypeAccess)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *Signer) Refresh(refreshToken string) (TokenPair, error) {
	claims, err := s.parse(refreshToken, TypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return s.Issue(claims.Subject)
}

func (s *Signer) parse(tokenStr, typ string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.Key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if s.Issuer != "" && claims.Issuer != s.Issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Role != RoleOperator || claims.Type != typ {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
