// Package permission derives the capability set a user holds on one
// server. Resolve is a total function over its inputs: missing or unknown
// context yields the fully locked set, never an error.
package permission

import "remindash-server/models"

// Context carries everything the derivation needs. ServerKnown is false
// when the server was not found for the requesting user.
type Context struct {
	ServerKnown        bool
	Role               models.UserRole
	IsServerAdmin      bool
	HasWriteCredential bool
}

// Set is the resolved capability set for one user on one server.
type Set struct {
	CanCreate               bool `json:"canCreate"`
	CanEdit                 bool `json:"canEdit"`
	CanManageServerSettings bool `json:"canManageServerSettings"`
	CanViewLogs             bool `json:"canViewLogs"`
	CanManipulateLogs       bool `json:"canManipulateLogs"`
	IsLockedByPassword      bool `json:"isLockedByPassword"`
}

// Locked is the fail-closed result: no capability, shown as locked.
var Locked = Set{IsLockedByPassword: true}

// Resolve computes the capability set. Creation and settings management
// share one gate (privileged role plus server admin); editing additionally
// opens to holders of a write credential; log viewing needs only server
// admin standing. Only supporters are ever reported as locked: they are
// the one role whose editing is password-gated rather than denied outright.
func Resolve(ctx Context) Set {
	if !ctx.ServerKnown || ctx.Role == models.RoleUnknown {
		return Locked
	}

	privileged := ctx.Role == models.RoleOwner || ctx.Role == models.RoleTester

	canCreate := privileged && ctx.IsServerAdmin
	canEdit := canCreate || ctx.HasWriteCredential

	return Set{
		CanCreate:               canCreate,
		CanEdit:                 canEdit,
		CanManageServerSettings: canCreate,
		CanViewLogs:             ctx.IsServerAdmin,
		CanManipulateLogs:       canEdit,
		IsLockedByPassword:      ctx.Role == models.RoleSupporter && !ctx.HasWriteCredential,
	}
}
