// Package auth provides operator authentication for the terminal:
// PIN login, lockout, and session tokens.
package auth

import (
	"context"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
)

// Operator roles. Supervisors and managers may authorize manual discounts.
const (
	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleManager    = "manager"
)

// Operator is a person working a terminal.
type Operator struct {
	ID                  id.ID      `db:"id" json:"id"`
	Code                string     `db:"code" json:"code"`
	Name                string     `db:"name" json:"name"`
	Role                string     `db:"role" json:"role"`
	PINHash             string     `db:"pin_hash" json:"-"`
	IsActive            bool       `db:"is_active" json:"isActive"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
	Version             int        `db:"version" json:"version"`
}

// NewOperator creates an operator.
func NewOperator(code, name, role, pinHash string) *Operator {
	now := time.Now().UTC()
	return &Operator{
		ID:        id.New(),
		Code:      code,
		Name:      name,
		Role:      role,
		PINHash:   pinHash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Validate checks operator invariants.
func (o *Operator) Validate(ctx context.Context) error {
	if o.Code == "" {
		return apperror.NewValidation("operator code is required").WithDetail("field", "code")
	}
	if o.Name == "" {
		return apperror.NewValidation("operator name is required").WithDetail("field", "name")
	}
	switch o.Role {
	case RoleCashier, RoleSupervisor, RoleManager:
	default:
		return apperror.NewValidation("invalid operator role").
			WithDetail("field", "role").
			WithDetail("value", o.Role)
	}
	return nil
}

// IsLocked reports whether the account is temporarily locked.
func (o *Operator) IsLocked() bool {
	return o.LockedUntil != nil && time.Now().Before(*o.LockedUntil)
}

// CanLogin checks login preconditions.
func (o *Operator) CanLogin() error {
	if !o.IsActive {
		return apperror.NewForbidden("operator account is disabled")
	}
	if o.IsLocked() {
		return apperror.NewForbidden("operator account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin increments the failure counter and locks the account
// once the limit is reached.
func (o *Operator) RecordFailedLogin(maxAttempts int, lockDuration time.Duration) {
	o.FailedLoginAttempts++
	if o.FailedLoginAttempts >= maxAttempts {
		lockUntil := time.Now().Add(lockDuration)
		o.LockedUntil = &lockUntil
	}
}

// RecordLogin resets counters after a successful login.
func (o *Operator) RecordLogin() {
	now := time.Now().UTC()
	o.LastLoginAt = &now
	o.FailedLoginAttempts = 0
	o.LockedUntil = nil
}

// CanAuthorizeDiscount reports whether this role may approve a manual
// lump-sum discount.
func (o *Operator) CanAuthorizeDiscount() bool {
	return o.Role == RoleSupervisor || o.Role == RoleManager
}

// Credentials for PIN login.
type Credentials struct {
	Code       string `json:"code"`
	PIN        string `json:"pin"`
	TerminalID string `json:"terminalId"`
}

// Session is the issued operator session.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Operator  *Operator `json:"operator"`
}

// Repository persists operators.
type Repository interface {
	Create(ctx context.Context, op *Operator) error
	Update(ctx context.Context, op *Operator) error
	GetByID(ctx context.Context, operatorID id.ID) (*Operator, error)
	GetByCode(ctx context.Context, code string) (*Operator, error)
	List(ctx context.Context, activeOnly bool) ([]Operator, error)
}
