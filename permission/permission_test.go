package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"remindash-server/models"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		ctx  Context
		want Set
	}{
		{
			name: "owner who is server admin holds everything",
			ctx:  Context{ServerKnown: true, Role: models.RoleOwner, IsServerAdmin: true},
			want: Set{
				CanCreate:               true,
				CanEdit:                 true,
				CanManageServerSettings: true,
				CanViewLogs:             true,
				CanManipulateLogs:       true,
			},
		},
		{
			name: "owner without admin standing holds nothing and is not locked",
			ctx:  Context{ServerKnown: true, Role: models.RoleOwner, IsServerAdmin: false},
			want: Set{},
		},
		{
			name: "tester who is server admin holds everything",
			ctx:  Context{ServerKnown: true, Role: models.RoleTester, IsServerAdmin: true},
			want: Set{
				CanCreate:               true,
				CanEdit:                 true,
				CanManageServerSettings: true,
				CanViewLogs:             true,
				CanManipulateLogs:       true,
			},
		},
		{
			name: "supporter admin without credential can only view logs, shown as locked",
			ctx:  Context{ServerKnown: true, Role: models.RoleSupporter, IsServerAdmin: true},
			want: Set{CanViewLogs: true, IsLockedByPassword: true},
		},
		{
			name: "supporter admin with credential can edit and touch logs, not create",
			ctx:  Context{ServerKnown: true, Role: models.RoleSupporter, IsServerAdmin: true, HasWriteCredential: true},
			want: Set{CanEdit: true, CanViewLogs: true, CanManipulateLogs: true},
		},
		{
			name: "supporter member with credential can edit but not view logs",
			ctx:  Context{ServerKnown: true, Role: models.RoleSupporter, IsServerAdmin: false, HasWriteCredential: true},
			want: Set{CanEdit: true, CanManipulateLogs: true},
		},
		{
			name: "unknown role fails closed",
			ctx:  Context{ServerKnown: true, Role: models.RoleUnknown, IsServerAdmin: true, HasWriteCredential: true},
			want: Locked,
		},
		{
			name: "unknown server fails closed regardless of role",
			ctx:  Context{ServerKnown: false, Role: models.RoleOwner, IsServerAdmin: true, HasWriteCredential: true},
			want: Locked,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.ctx))
		})
	}
}

func TestResolveCreateAndSettingsShareGate(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleOwner, models.RoleSupporter, models.RoleTester} {
		for _, admin := range []bool{true, false} {
			for _, cred := range []bool{true, false} {
				got := Resolve(Context{ServerKnown: true, Role: role, IsServerAdmin: admin, HasWriteCredential: cred})
				assert.Equal(t, got.CanCreate, got.CanManageServerSettings,
					"role=%s admin=%v cred=%v", role, admin, cred)
				assert.Equal(t, got.CanEdit, got.CanManipulateLogs,
					"role=%s admin=%v cred=%v", role, admin, cred)
			}
		}
	}
}

func TestOnlySupportersAreEverLocked(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleOwner, models.RoleTester} {
		for _, admin := range []bool{true, false} {
			got := Resolve(Context{ServerKnown: true, Role: role, IsServerAdmin: admin})
			assert.False(t, got.IsLockedByPassword, "role=%s admin=%v", role, admin)
		}
	}
}
