package token

// Role is the fixed-case role enumeration carried in the scope claim.
//
// Values are compared exactly. "admin" is not RoleAdmin.
type Role string

const (
	// RoleNone marks a missing or unrecognised role claim.
	RoleNone Role = ""
	// RoleAdmin grants administrative screens.
	RoleAdmin Role = "ADMIN"
	// RoleStudent grants enrollment screens.
	RoleStudent Role = "STUDENT"
	// RoleMentor grants mentoring screens.
	RoleMentor Role = "MENTOR"
)

// ParseRole maps a raw claim value onto the enumeration. Unknown values map to
// RoleNone with ok=false.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleStudent, RoleMentor:
		return Role(raw), true
	default:
		return RoleNone, false
	}
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}
