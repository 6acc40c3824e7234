package models

// Role is the caller-supplied authorization decision for a project.
type Role string

const (
	RoleNone   Role = ""
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// CanView reports whether r may read files.
func (r Role) CanView() bool {
	return r == RoleViewer || r.CanEdit()
}

// CanEdit reports whether r may upload, rename, remove and create folders.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleAdmin
}

// CanAdmin reports whether r may change read-only flags.
func (r Role) CanAdmin() bool {
	return r == RoleAdmin
}

// Actor is the acting user as established by the transport layer.
type Actor struct {
	Email string
	Name  string
	Role  Role
}

// Author renders the identity string stored on files and uploads.
func (a Actor) Author() string {
	return a.Email + "|" + a.Name
}
