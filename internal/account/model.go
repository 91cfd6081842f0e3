package account

import "strings"

// Permission is a user's access level. Levels are strictly ordered: each
// level includes everything below it.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
	PermAdmin  Permission = "admin"
)

// permLevels mirrors the server's ordering. Unknown values rank below read.
var permLevels = map[Permission]int{
	PermRead:   1,
	PermWrite:  2,
	PermDelete: 3,
	PermAdmin:  4,
}

// ParsePermission normalizes a wire-format permission string. Unknown values
// degrade to read so a malformed event can never grant capabilities.
func ParsePermission(s string) Permission {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := permLevels[p]; ok {
		return p
	}
	return PermRead
}

// Level returns the numeric rank of the permission.
func (p Permission) Level() int {
	return permLevels[p]
}

// Allows reports whether p grants at least the given level.
func (p Permission) Allows(required Permission) bool {
	return permLevels[p] >= permLevels[required]
}

// CanUpload reports whether the user may upload files.
func (p Permission) CanUpload() bool { return p.Allows(PermWrite) }

// CanDelete reports whether the user may delete files.
func (p Permission) CanDelete() bool { return p.Allows(PermDelete) }

// CanAdmin reports whether the user may open the user-management view.
func (p Permission) CanAdmin() bool { return p == PermAdmin }

// Describe returns the label shown in the header for a permission level.
func (p Permission) Describe() string {
	switch p {
	case PermAdmin:
		return "Administrator"
	case PermDelete:
		return "Full Permissions"
	case PermWrite:
		return "Download & Upload"
	case PermRead:
		return "Download Only"
	default:
		return string(p)
	}
}

// User represents one account row in the admin view.
type User struct {
	ID         int
	Username   string
	Permission Permission
}
