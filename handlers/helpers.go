package handlers

import (
	"net/http"

	"remindash-server/middleware"
	"remindash-server/models"
	"remindash-server/permission"
	"remindash-server/store"
)

// WriteTokenHeader carries the per-server write credential on mutating
// requests.
const WriteTokenHeader = "x-write-token"

// resolvePermissions builds the permission context for the session user on
// one server and resolves it. Unknown users or non-members fail closed.
func resolvePermissions(s *store.Store, r *http.Request, serverID string) permission.Set {
	userID := middleware.GetUserID(r)

	role := models.RoleUnknown
	if user, err := s.GetUserByID(userID); err == nil {
		role = user.Role
	}

	memberRole, err := s.GetMemberRole(serverID, userID)
	serverKnown := err == nil

	return permission.Resolve(permission.Context{
		ServerKnown:        serverKnown,
		Role:               role,
		IsServerAdmin:      memberRole == models.MemberAdmin,
		HasWriteCredential: middleware.HasWriteCredential(r.Header.Get(WriteTokenHeader), serverID),
	})
}
