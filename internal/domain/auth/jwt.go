package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "tillpoint/internal/core/context"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration. The TTL matches a
// till shift so operators sign in once per shift.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "tillpoint",
		AccessTokenTTL: 10 * time.Hour,
	}
}

// Claims represents operator session claims.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID string `json:"oid"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	TerminalID string `json:"term"`
}

// JWTService handles session token operations.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// GenerateToken issues a session token for the operator at a terminal.
func (s *JWTService) GenerateToken(op *Operator, terminalID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   op.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		OperatorID: op.ID.String(),
		Name:       op.Name,
		Role:       op.Role,
		TerminalID: terminalID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a session token and returns the operator context.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.OperatorContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &appctx.OperatorContext{
		OperatorID: claims.OperatorID,
		Name:       claims.Name,
		Role:       claims.Role,
		TerminalID: claims.TerminalID,
		SessionID:  claims.ID,
	}, nil
}
