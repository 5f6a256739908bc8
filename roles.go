package authgate

// Role is the authorization role derived from the admin allow-list. It is
// computed, never stored: recomputed synchronously on every auth change.
type Role = string

const (
	// RoleStandard is every authenticated non-admin user
	RoleStandard Role = "standard"
	// RoleAdmin is a member of the static allow-list
	RoleAdmin Role = "admin"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleStandard, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}

// AllowList is the static, build-time configured set of authorized admin
// email addresses. It is not user-editable at runtime.
type AllowList []string

// NewAllowList builds an allow-list from the configured admin emails.
func NewAllowList(emails ...string) AllowList {
	out := make(AllowList, 0, len(emails))
	for _, e := range emails {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// IsAdmin reports whether the email is a member of the allow-list. Matching
// is an exact byte comparison; the provider is the source of truth for
// casing and no normalization is applied.
func (l AllowList) IsAdmin(email string) bool {
	if email == "" {
		return false
	}

	for _, allowed := range l {
		if allowed == email {
			return true
		}
	}
	return false
}

// IsAdminUser is the nil-safe variant for derived users.
func (l AllowList) IsAdminUser(user *User) bool {
	if user == nil {
		return false
	}
	return l.IsAdmin(user.Email)
}

// RoleFor derives the role for a user.
func (l AllowList) RoleFor(user *User) Role {
	if l.IsAdminUser(user) {
		return RoleAdmin
	}
	return RoleStandard
}
