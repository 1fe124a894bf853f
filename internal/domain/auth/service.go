package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tillpoint/internal/core/apperror"
	"tillpoint/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts int
	LockDuration     time.Duration
	PINMinLength     int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts: 5,
		LockDuration:     15 * time.Minute,
		PINMinLength:     4,
	}
}

// Service provides operator authentication.
type Service struct {
	operators  Repository
	jwtService *JWTService
	config     ServiceConfig
}

// NewService creates the auth service.
func NewService(operators Repository, jwtService *JWTService, config ServiceConfig) *Service {
	return &Service{
		operators:  operators,
		jwtService: jwtService,
		config:     config,
	}
}

// Login authenticates an operator PIN and issues a session token bound to
// the terminal.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Session, error) {
	op, err := s.operators.GetByCode(ctx, creds.Code)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := op.CanLogin(); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PINHash), []byte(creds.PIN)); err != nil {
		op.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockDuration)
		if updateErr := s.operators.Update(ctx, op); updateErr != nil {
			logger.Warn(ctx, "record failed login", "operator", op.Code, "error", updateErr)
		}
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	op.RecordLogin()
	if err := s.operators.Update(ctx, op); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	token, expiresAt, err := s.jwtService.GenerateToken(op, creds.TerminalID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	logger.Info(ctx, "operator logged in",
		"operator", op.Code,
		"role", op.Role,
		"terminal", creds.TerminalID,
	)

	return &Session{Token: token, ExpiresAt: expiresAt, Operator: op}, nil
}

// RegisterOperator creates an operator with a hashed PIN.
func (s *Service) RegisterOperator(ctx context.Context, code, name, role, pin string) (*Operator, error) {
	if len(pin) < s.config.PINMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("pin must be at least %d digits", s.config.PINMinLength)).
			WithDetail("field", "pin")
	}
	if existing, err := s.operators.GetByCode(ctx, code); err == nil && existing != nil {
		return nil, apperror.NewDuplicate("operator", "code", code)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	op := NewOperator(code, name, role, string(hash))
	if err := op.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return nil, err
	}

	logger.Info(ctx, "operator registered", "operator", op.Code, "role", op.Role)
	return op, nil
}

// ChangePIN replaces the operator's PIN after verifying the current one.
func (s *Service) ChangePIN(ctx context.Context, code, currentPIN, newPIN string) error {
	op, err := s.operators.GetByCode(ctx, code)
	if err != nil {
		return apperror.NewUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PINHash), []byte(currentPIN)); err != nil {
		return apperror.NewUnauthorized("invalid credentials")
	}
	if len(newPIN) < s.config.PINMinLength {
		return apperror.NewValidation(
			fmt.Sprintf("pin must be at least %d digits", s.config.PINMinLength)).
			WithDetail("field", "pin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	op.PINHash = string(hash)
	op.UpdatedAt = time.Now().UTC()
	op.Version++
	return s.operators.Update(ctx, op)
}

// VerifyAuthorizer checks a supervisor override: the PIN must belong to an
// active operator allowed to approve discounts. Returns the authorizer.
func (s *Service) VerifyAuthorizer(ctx context.Context, code, pin string) (*Operator, error) {
	op, err := s.operators.GetByCode(ctx, code)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := op.CanLogin(); err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PINHash), []byte(pin)); err != nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}
	if !op.CanAuthorizeDiscount() {
		return nil, apperror.NewForbidden("operator cannot authorize discounts")
	}
	return op, nil
}
