package role

import (
	"context"
	"errors"

	"github.com/fieldline/fieldline/internal/access"
	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
)

type Role struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Capabilities access.Capability `json:"capabilities"`
	Permissions  string            `json:"permissions"`
	Default      bool              `json:"default"`
}

var ErrNotFound = errors.New("role not found")

type Seed struct {
	Name         string
	Capabilities access.Capability
}

const DefaultRoleName = access.RoleUser

// Seeds are the roles every installation starts with.
var Seeds = []Seed{
	{access.RoleAdmin, access.CapAll},
	{access.RoleOwner, access.CapView | access.CapEdit | access.CapCreate | access.CapApprove},
	{access.RoleOwnerRep, access.CapView | access.CapEdit | access.CapCreate | access.CapApprove},
	{access.RoleGeneralContractor, access.CapView | access.CapEdit | access.CapCreate | access.CapApprove},
	{access.RoleSubcontractor, access.CapView | access.CapEdit | access.CapCreate},
	{access.RoleDesignTeam, access.CapView | access.CapEdit | access.CapCreate},
	{access.RoleUser, access.CapView},
}

type RepositoryAPI interface {
	GetByName(ctx context.Context, name string) (*userDatamodel.Role, error)
	GetDefault(ctx context.Context) (*userDatamodel.Role, error)
	List(ctx context.Context) ([]*userDatamodel.Role, error)
	Save(ctx context.Context, r *userDatamodel.Role) error
	// SetDefault flags name as the default role and clears the flag on every
	// other role in one transaction.
	SetDefault(ctx context.Context, name string) error
}

func FromDataModel(r *userDatamodel.Role) *Role {
	c := access.FromMask(r.Permissions)
	return &Role{
		ID:           r.ID,
		Name:         r.Name,
		Capabilities: c,
		Permissions:  c.String(),
		Default:      r.Default,
	}
}
