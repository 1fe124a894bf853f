package auth

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
)

type memOperatorRepo struct {
	byCode map[string]*Operator
}

func newMemRepo(ops ...*Operator) *memOperatorRepo {
	r := &memOperatorRepo{byCode: make(map[string]*Operator)}
	for _, op := range ops {
		r.byCode[op.Code] = op
	}
	return r
}

func (r *memOperatorRepo) Create(_ context.Context, op *Operator) error {
	r.byCode[op.Code] = op
	return nil
}

func (r *memOperatorRepo) Update(_ context.Context, op *Operator) error {
	r.byCode[op.Code] = op
	return nil
}

func (r *memOperatorRepo) GetByID(_ context.Context, operatorID id.ID) (*Operator, error) {
	for _, op := range r.byCode {
		if op.ID == operatorID {
			return op, nil
		}
	}
	return nil, apperror.NewNotFound("operator", operatorID.String())
}

func (r *memOperatorRepo) GetByCode(_ context.Context, code string) (*Operator, error) {
	if op, ok := r.byCode[code]; ok {
		return op, nil
	}
	return nil, apperror.NewNotFound("operator", code)
}

func (r *memOperatorRepo) List(context.Context, bool) ([]Operator, error) { return nil, nil }

func operatorWithPIN(t *testing.T, code, role, pin string) *Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	return NewOperator(code, "Operator "+code, role, string(hash))
}

func newService(repo Repository) *Service {
	return NewService(repo, NewJWTService(DefaultJWTConfig("test-secret")), DefaultServiceConfig())
}

func TestLogin_IssuesSessionToken(t *testing.T) {
	op := operatorWithPIN(t, "C01", RoleCashier, "1234")
	svc := newService(newMemRepo(op))

	session, err := svc.Login(context.Background(), Credentials{Code: "C01", PIN: "1234", TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token == "" {
		t.Fatal("session token is empty")
	}

	opCtx, err := NewJWTService(DefaultJWTConfig("test-secret")).ValidateToken(session.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if opCtx.OperatorID != op.ID.String() {
		t.Errorf("operator id = %s, want %s", opCtx.OperatorID, op.ID)
	}
	if opCtx.Role != RoleCashier || opCtx.TerminalID != "till-1" {
		t.Errorf("claims = %+v", opCtx)
	}
	if op.LastLoginAt == nil {
		t.Error("login must record last login time")
	}
}

func TestLogin_WrongPINLocksAfterMaxAttempts(t *testing.T) {
	op := operatorWithPIN(t, "C01", RoleCashier, "1234")
	svc := newService(newMemRepo(op))
	ctx := context.Background()

	for i := 0; i < DefaultServiceConfig().MaxLoginAttempts; i++ {
		if _, err := svc.Login(ctx, Credentials{Code: "C01", PIN: "0000"}); err == nil {
			t.Fatal("wrong pin must fail")
		}
	}
	if !op.IsLocked() {
		t.Fatal("account must lock after repeated failures")
	}
	// Even the correct PIN fails while locked.
	if _, err := svc.Login(ctx, Credentials{Code: "C01", PIN: "1234"}); err == nil {
		t.Error("locked account must not log in")
	}
}

func TestLogin_UnknownOperator(t *testing.T) {
	svc := newService(newMemRepo())
	if _, err := svc.Login(context.Background(), Credentials{Code: "ghost", PIN: "1234"}); err == nil {
		t.Error("unknown operator must fail")
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	op := operatorWithPIN(t, "C01", RoleCashier, "1234")
	token, _, err := NewJWTService(DefaultJWTConfig("secret-a")).GenerateToken(op, "till-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTService(DefaultJWTConfig("secret-b")).ValidateToken(token); err == nil {
		t.Error("token signed with another secret must fail")
	}
}

func TestVerifyAuthorizer_RoleGate(t *testing.T) {
	cashier := operatorWithPIN(t, "C01", RoleCashier, "1234")
	supervisor := operatorWithPIN(t, "S01", RoleSupervisor, "9876")
	svc := newService(newMemRepo(cashier, supervisor))
	ctx := context.Background()

	if _, err := svc.VerifyAuthorizer(ctx, "C01", "1234"); err == nil {
		t.Error("cashier must not authorize discounts")
	}
	authorizer, err := svc.VerifyAuthorizer(ctx, "S01", "9876")
	if err != nil {
		t.Fatalf("supervisor authorization: %v", err)
	}
	if authorizer.Code != "S01" {
		t.Errorf("authorizer = %s, want S01", authorizer.Code)
	}
	if _, err := svc.VerifyAuthorizer(ctx, "S01", "0000"); err == nil {
		t.Error("wrong pin must fail authorization")
	}
}

func TestRegisterOperator(t *testing.T) {
	svc := newService(newMemRepo())
	ctx := context.Background()

	op, err := svc.RegisterOperator(ctx, "M01", "Morgan", RoleManager, "4321")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if op.PINHash == "4321" {
		t.Error("pin must be stored hashed")
	}

	if _, err := svc.RegisterOperator(ctx, "M01", "Again", RoleManager, "4321"); err == nil {
		t.Error("duplicate code must fail")
	}
	if _, err := svc.RegisterOperator(ctx, "M02", "Short", RoleManager, "12"); err == nil {
		t.Error("short pin must fail")
	}
	if _, err := svc.RegisterOperator(ctx, "M03", "Odd", "janitor", "4321"); err == nil {
		t.Error("invalid role must fail")
	}
}
