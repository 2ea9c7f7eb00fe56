package models

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the verified caller attached to a request context.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// HasRole reports whether the identity's role is one of allowed.
func (i Identity) HasRole(allowed ...Role) bool {
	for _, r := range allowed {
		if i.Role == r {
			return true
		}
	}
	return false
}
