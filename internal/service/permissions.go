package service

import (
	"github.com/openshelf/library-service/internal/model"
)

type Permission string

const (
	PermBookAdd        Permission = "BOOK_ADD"
	PermBookEdit       Permission = "BOOK_EDIT"
	PermBookDelete     Permission = "BOOK_DELETE"
	PermBookCheckout   Permission = "BOOK_CHECKOUT"
	PermBookCheckin    Permission = "BOOK_CHECKIN"
	PermAdminAnalytics Permission = "ADMIN_ANALYTICS"
)

// rolePermissions is the full authorization policy: librarians may add
// books but only admins edit or delete them; every role may borrow.
var rolePermissions = map[model.Role][]Permission{
	model.RoleAdmin: {
		PermBookAdd, PermBookEdit, PermBookDelete,
		PermBookCheckout, PermBookCheckin, PermAdminAnalytics,
	},
	model.RoleLibrarian: {
		PermBookAdd, PermBookCheckout, PermBookCheckin,
	},
	model.RoleMember: {
		PermBookCheckout, PermBookCheckin,
	},
}

func HasPermission(role model.Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
