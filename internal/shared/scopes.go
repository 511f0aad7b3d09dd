package shared

// Core platform permissions guarding the engine's own admin surface.
const (
	PermUsersView = "user.view"
	PermUsersEdit = "user.edit"

	PermRolesView   = "role.view"
	PermRolesManage = "role.manage"

	PermPermissionsView   = "permission.view"
	PermPermissionsManage = "permission.manage"

	PermOrgView = "org.view"
	PermOrgEdit = "org.edit"

	PermAuditView = "audit.view"
)

// CoreScopes lists all permissions guarding the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesManage,
		PermPermissionsView,
		PermPermissionsManage,
		PermOrgView,
		PermOrgEdit,
		PermAuditView,
	}
}
