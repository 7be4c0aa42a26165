package model

// Role is the coarse authorization role supplied by the external auth layer.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleReadOnly Role = "read_only"
)

// User identifies the human acting on an approval decision. Authentication
// happens outside this core; the (id, role) pair arrives as context.
type User struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// CanDecide reports whether the user may approve or reject enrichments.
func (u User) CanDecide() bool {
	return u.Role == RoleAdmin || u.Role == RoleOperator
}
