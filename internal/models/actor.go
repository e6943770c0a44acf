package models

// Role grants access to a family of operations.
type Role string

const (
	RoleOperator Role = "operator"
	RoleSigner   Role = "signer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string `json:"id"`
	Roles []Role `json:"roles"`
}

func (a Actor) HasRole(r Role) bool {
	for _, have := range a.Roles {
		if have == r || have == RoleAdmin {
			return true
		}
	}
	return false
}

// SystemActor performs background transitions such as expiry.
var SystemActor = Actor{ID: "system", Roles: []Role{RoleAdmin}}
