package auth

const (
	PermLeaveRead      = "leave.read"
	PermLeaveWrite     = "leave.write"
	PermLeaveApprove   = "leave.approve"
	PermLeaveAdjust    = "leave.adjust"
	PermCalendarRead   = "leave.calendar.read"
	PermCalendarExport = "leave.calendar.export"
	PermSystemAdmin    = "admin.system"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermLeaveRead,
		PermLeaveWrite,
		PermCalendarRead,
	},
	RoleManager: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermCalendarRead,
		PermCalendarExport,
	},
	RoleHR: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdjust,
		PermCalendarRead,
		PermCalendarExport,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
	},
}

// HasPermission reports whether the role grants the permission. The system
// admin role passes every check.
func HasPermission(roleName, permission string) bool {
	for _, p := range RolePermissions[roleName] {
		if p == permission || p == PermSystemAdmin {
			return true
		}
	}
	return false
}
