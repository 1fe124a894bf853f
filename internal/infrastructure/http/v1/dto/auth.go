package dto

import (
	"time"

	"tillpoint/internal/domain/auth"
)

// --- Request DTOs ---

// LoginRequest for operator PIN login.
type LoginRequest struct {
	Code       string `json:"code" binding:"required"`
	PIN        string `json:"pin" binding:"required"`
	TerminalID string `json:"terminalId" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{
		Code:       r.Code,
		PIN:        r.PIN,
		TerminalID: r.TerminalID,
	}
}

// RegisterOperatorRequest for creating an operator account.
type RegisterOperatorRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"required"`
	PIN  string `json:"pin" binding:"required"`
}

// ChangePINRequest replaces the operator's PIN.
type ChangePINRequest struct {
	Code       string `json:"code" binding:"required"`
	CurrentPIN string `json:"currentPin" binding:"required"`
	NewPIN     string `json:"newPin" binding:"required"`
}

// VerifyAuthorizerRequest checks a supervisor override PIN.
type VerifyAuthorizerRequest struct {
	Code string `json:"code" binding:"required"`
	PIN  string `json:"pin" binding:"required"`
}

// --- Response DTOs ---

// OperatorResponse represents an operator in API responses.
type OperatorResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// FromOperator creates response from domain operator.
func FromOperator(op *auth.Operator) *OperatorResponse {
	return &OperatorResponse{
		ID:          op.ID.String(),
		Code:        op.Code,
		Name:        op.Name,
		Role:        op.Role,
		IsActive:    op.IsActive,
		LastLoginAt: op.LastLoginAt,
		CreatedAt:   op.CreatedAt,
	}
}

// SessionResponse is the issued operator session.
type SessionResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Operator  *OperatorResponse `json:"operator"`
}

// FromSession creates response from a domain session.
func FromSession(s *auth.Session) *SessionResponse {
	return &SessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		Operator:  FromOperator(s.Operator),
	}
}

// AuthorizerResponse confirms a verified discount authorizer.
type AuthorizerResponse struct {
	Name string `json:"name"`
	Role string `json:"role"`
}
