package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTManager handles generation and validation of JWT tokens
// Access and refresh tokens use independent secrets and TTLs.
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	now func() time.Time
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Identity is the user data embedded in access tokens.
type Identity struct {
	UserID   string
	Email    string
	Username string
	FullName string
}

type Claims struct {
	UserID   string `json:"_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
	jwt.RegisteredClaims
}

func (m *JWTManager) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

func (m *JWTManager) GenerateAccessToken(id Identity) (string, time.Time, error) {
	return m.sign(Claims{
		UserID:   id.UserID,
		Email:    id.Email,
		Username: id.Username,
		FullName: id.FullName,
	}, m.AccessTTL, m.AccessSecret)
}

// GenerateRefreshToken carries only the user id.
func (m *JWTManager) GenerateRefreshToken(userID string) (string, time.Time, error) {
	return m.sign(Claims{UserID: userID}, m.RefreshTTL, m.RefreshSecret)
}

func (m *JWTManager) sign(claims Claims, ttl time.Duration, secret []byte) (string, time.Time, error) {
	now := m.clock()
	exp := now.Add(ttl)
	// jti keeps two tokens minted in the same second distinct
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

func (m *JWTManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	return m.parseToken(tokenStr, m.AccessSecret)
}

func (m *JWTManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return m.parseToken(tokenStr, m.RefreshSecret)
}

func (m *JWTManager) parseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.clock), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !tkn.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
