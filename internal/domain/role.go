package domain

// Role is a user's standing within a workspace, as resolved by the
// membership service. Workspace owners resolve to RoleAdmin.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleNone   Role = "none"
)

// Member reports whether the role grants any workspace access at all.
func (r Role) Member() bool {
	return r == RoleAdmin || r == RoleEditor || r == RoleViewer
}

// CanCreateSession reports whether the role may open a jam session.
func (r Role) CanCreateSession() bool {
	return r == RoleAdmin || r == RoleEditor
}

// CanDeleteSession reports whether the role may tear a session down.
func (r Role) CanDeleteSession() bool {
	return r == RoleAdmin
}
