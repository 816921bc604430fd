package access

import (
	"context"
	"slices"
)

// Global role names.
const (
	RoleAdmin             = "Admin"
	RoleOwner             = "Owner"
	RoleOwnerRep          = "Owner's Representative"
	RoleGeneralContractor = "General Contractor"
	RoleSubcontractor     = "Subcontractor"
	RoleDesignTeam        = "Design Team"
	RoleUser              = "User"
)

// Principal is the authenticated user as seen by authorization code.
type Principal struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Capabilities Capability `json:"capabilities"`
	Active       bool       `json:"is_active"`
}

func (p *Principal) Can(c Capability) bool {
	if p == nil {
		return false
	}
	return p.Capabilities.Has(c)
}

func (p *Principal) IsAdmin() bool {
	return p.Can(CapAdmin)
}

// HasRole reports whether the principal's global role is one of roles.
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(roles, p.Role)
}

type ctxKey string

const (
	principalKey ctxKey = "principal"
	projectIDKey ctxKey = "project_id"
)

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal. Inactive users are
// treated as anonymous.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok || p == nil || !p.Active {
		return nil, false
	}
	return p, true
}

func WithProjectID(ctx context.Context, projectID int64) context.Context {
	return context.WithValue(ctx, projectIDKey, projectID)
}

// ProjectIDFromContext returns the project id validated by the project guard.
func ProjectIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(projectIDKey).(int64)
	return id, ok
}
