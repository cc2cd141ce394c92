package enums

// Role is the single platform role held by a user profile.
type Role string

const (
	RoleStudent            Role = "student"
	RoleSuperAdmin         Role = "super_admin"
	RoleSchoolManager      Role = "school_manager"
	RoleContentManager     Role = "content_manager"
	RoleApplicationManager Role = "application_manager"
	RoleAnalyst            Role = "analyst"
)

// adminRoles is flat; no admin role outranks another for read access. Only
// super_admin may assign roles.
var adminRoles = set[Role]{
	RoleSuperAdmin,
	RoleSchoolManager,
	RoleContentManager,
	RoleApplicationManager,
	RoleAnalyst,
}

var roles = append(set[Role]{RoleStudent}, adminRoles...)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return roles.has(r) }

func (r Role) IsAdmin() bool { return adminRoles.has(r) }

func AdminRoles() []Role { return adminRoles.values() }

func ParseRole(value string) (Role, error) {
	return roles.parse("role", value)
}
