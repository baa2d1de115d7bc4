package auth

import (
	"context"
	"strings"

	"worklog/internal/platform/config"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

const (
	PermRead     = "worklog.read"
	PermWrite    = "worklog.write"
	PermFinalize = "rcti.finalize"

	PermAuditRead = "audit.read"
)

// AccessPolicy maps role names to the permissions they hold. It is built
// once from configuration and satisfies middleware.PermissionStore.
type AccessPolicy struct {
	roles map[string]map[string]bool
}

func NewAccessPolicy(access config.Access) *AccessPolicy {
	p := &AccessPolicy{roles: map[string]map[string]bool{}}
	p.grant(PermRead, access.ReadRoles)
	p.grant(PermWrite, access.WriteRoles)
	p.grant(PermFinalize, access.FinalizeRoles)
	p.grant(PermAuditRead, []string{RoleAdmin})
	return p
}

func (p *AccessPolicy) grant(permission string, roles []string) {
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if p.roles[role] == nil {
			p.roles[role] = map[string]bool{}
		}
		p.roles[role][permission] = true
	}
}

func (p *AccessPolicy) HasPermission(_ context.Context, role, permission string) (bool, error) {
	if p == nil {
		return false, nil
	}
	return p.roles[strings.ToLower(role)][permission], nil
}

func (p *AccessPolicy) KnownRole(role string) bool {
	if p == nil {
		return false
	}
	_, ok := p.roles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}
