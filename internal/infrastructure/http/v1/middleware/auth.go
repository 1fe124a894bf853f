package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/apperror"
	appctx "tillpoint/internal/core/context"
)

// TokenValidator interface for session token validation.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.OperatorContext, error)
}

// Auth middleware validates session tokens and populates the operator context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		tokenString := parts[1]

		// Validate token
		operator, err := validator.ValidateToken(tokenString)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		// A terminal may pin its identity; the token must match it then.
		headerTerminal := c.GetHeader("X-Terminal-ID")
		if headerTerminal != "" && operator.TerminalID != "" && headerTerminal != operator.TerminalID {
			_ = c.Error(
				apperror.NewForbidden("terminal mismatch").
					WithDetail("header_terminal_id", headerTerminal).
					WithDetail("token_terminal_id", operator.TerminalID),
			)
			c.Abort()
			return
		}

		// Add operator to context
		ctx := appctx.WithOperator(c.Request.Context(), operator)
		c.Request = c.Request.WithContext(ctx)

		// Store in gin context for easy access
		c.Set("operator_id", operator.OperatorID)
		c.Set("operator_role", operator.Role)
		c.Set("terminal_id", operator.TerminalID)

		c.Next()
	}
}

// OptionalAuth validates token if present, but doesn't require it.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.Next()
			return
		}

		operator, err := validator.ValidateToken(parts[1])
		if err == nil && operator != nil {
			ctx := appctx.WithOperator(c.Request.Context(), operator)
			c.Request = c.Request.WithContext(ctx)
			c.Set("operator_id", operator.OperatorID)
			c.Set("operator_role", operator.Role)
			c.Set("terminal_id", operator.TerminalID)
		}

		c.Next()
	}
}

// RequireRole middleware checks if the operator has one of the required roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := appctx.GetOperator(c.Request.Context())
		if operator == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		for _, required := range roles {
			if operator.Role == required {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
