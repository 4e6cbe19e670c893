package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openshelf/library-service/internal/model"
)

func TestHasPermission(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name string
		role model.Role
		perm Permission
		want bool
	}{
		{"admin adds books", model.RoleAdmin, PermBookAdd, true},
		{"admin edits books", model.RoleAdmin, PermBookEdit, true},
		{"admin deletes books", model.RoleAdmin, PermBookDelete, true},
		{"admin reads analytics", model.RoleAdmin, PermAdminAnalytics, true},
		{"librarian adds books", model.RoleLibrarian, PermBookAdd, true},
		{"librarian cannot edit", model.RoleLibrarian, PermBookEdit, false},
		{"librarian cannot delete", model.RoleLibrarian, PermBookDelete, false},
		{"librarian cannot read analytics", model.RoleLibrarian, PermAdminAnalytics, false},
		{"librarian checks out", model.RoleLibrarian, PermBookCheckout, true},
		{"member checks out", model.RoleMember, PermBookCheckout, true},
		{"member checks in", model.RoleMember, PermBookCheckin, true},
		{"member cannot add books", model.RoleMember, PermBookAdd, false},
		{"member cannot read analytics", model.RoleMember, PermAdminAnalytics, false},
		{"unknown role has nothing", model.Role("GUEST"), PermBookCheckout, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, HasPermission(tt.role, tt.perm))
		})
	}
}
