package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Platform identifies the client device class of a connection.
type Platform string

const (
	PlatformUnknown Platform = "unknown"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
	PlatformDesktop Platform = "desktop"
)

// Claims carried by a session token. Tokens are minted by the excluded
// authentication service; the engine only validates them on connect.
type Claims struct {
	UserID   int64    `json:"user_id"`
	DeviceID string   `json:"device_id"`
	Platform Platform `json:"platform"`
	jwt.RegisteredClaims
}

// Service validates session tokens.
type Service struct {
	secretKey []byte
}

// NewService creates a token service for the shared signing secret.
func NewService(secretKey string) *Service {
	return &Service{secretKey: []byte(secretKey)}
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// GenerateToken mints a token. Production tokens come from the auth service;
// this exists for local development and tests.
func (s *Service) GenerateToken(userID int64, deviceID string, platform Platform, expire time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		DeviceID: deviceID,
		Platform: platform,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}
