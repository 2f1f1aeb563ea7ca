// Package auth validates the bearer tokens issued by the external
// authentication provider and mints service-role tokens for job triggers.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Roles carried in the JWT "role" claim.
const (
	// RoleAuthenticated is the role of an end user acting on their own data.
	RoleAuthenticated = "authenticated"

	// RoleServiceRole is the privileged cross-user principal the batch jobs
	// run as.
	RoleServiceRole = "service_role"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed HS256 token for subject with the given
	// role. A service-role token may have a nil subject.
	GenerateToken(ctx context.Context, subject uuid.UUID, role string) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on
	// failure. Tokens with the authenticated role must carry a UUID subject.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated claims of a bearer token.
type Claims struct {
	// UserID is the subject parsed as a UUID; uuid.Nil for service tokens
	// without a subject.
	UserID uuid.UUID

	// Role is the "role" claim.
	Role string

	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// IsServiceRole reports whether the token belongs to the privileged batch
// principal.
func (c *Claims) IsServiceRole() bool {
	return c.Role == RoleServiceRole
}
