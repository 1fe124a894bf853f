// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// OperatorContext contains the authenticated operator (cashier, supervisor)
// working the terminal. The engine consumes identity and role opaquely;
// credential validation belongs to the session layer.
type OperatorContext struct {
	OperatorID string
	Name       string
	Role       string
	TerminalID string
	SessionID  string
}

type operatorContextKey struct{}

// WithOperator adds OperatorContext to context.
func WithOperator(ctx context.Context, op *OperatorContext) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// GetOperator returns OperatorContext from context.
func GetOperator(ctx context.Context) *OperatorContext {
	if v, ok := ctx.Value(operatorContextKey{}).(*OperatorContext); ok {
		return v
	}
	return nil
}

// GetOperatorID returns operator ID from context or empty string.
func GetOperatorID(ctx context.Context) string {
	if o := GetOperator(ctx); o != nil {
		return o.OperatorID
	}
	return ""
}

// GetOperatorRole returns the operator role from context or empty string.
func GetOperatorRole(ctx context.Context) string {
	if o := GetOperator(ctx); o != nil {
		return o.Role
	}
	return ""
}

// HasRole checks if the operator has a specific role.
func HasRole(ctx context.Context, role string) bool {
	o := GetOperator(ctx)
	return o != nil && o.Role == role
}
