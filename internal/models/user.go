package models

// Role is the single role a user acts under.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleAccountant Role = "ACCOUNTANT"
	RoleSupervisor Role = "SUPERVISOR"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleManager, RoleAccountant, RoleSupervisor}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents the user model in the database
type User struct {
	Base
	Username string `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"size:20;not null" json:"role"`
	Enabled  bool   `gorm:"not null;default:true" json:"enabled"`
}
