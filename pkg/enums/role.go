package enums

// Role is the actor role carried in access tokens.
type Role string

const (
	RoleUser    Role = "user"
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
)

var roles = []Role{RoleUser, RolePartner, RoleAdmin}

func (r Role) String() string { return string(r) }
func (r Role) IsValid() bool  { return known(r, roles) }

func ParseRole(value string) (Role, error) { return parse("role", value, roles) }
