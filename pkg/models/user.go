package models

import "strings"

// Role is an account's permission level.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes a role name. The backend is not consistent about case.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleGuest, RoleHost, RoleAdmin:
		return r, true
	}
	return "", false
}

// Is reports whether r names the same role as other, ignoring case.
func (r Role) Is(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}

// UserStatus is an account's moderation state.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// User is an account as seen by administrators.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status,omitempty"`
	CreatedAt Time       `json:"created_at"`
	UpdatedAt Time       `json:"updated_at"`
}

func (u User) EntityID() int64 { return u.ID }

// Identity is the authenticated account, as returned by GET /me.
type Identity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"username"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// IdentityOf projects a User onto the fields a session keeps.
func IdentityOf(u User) Identity {
	return Identity{ID: u.ID, DisplayName: u.Username, Email: u.Email, Role: u.Role}
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body returned by POST /login and POST /users. User is
// absent on servers that only return the token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	User        *Identity `json:"user,omitempty"`
}

// RegisterRequest is the body of POST /users.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// UserPatch is the body of PATCH /users/{id}. Nil fields are left unchanged.
type UserPatch struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// RoleChange is the body of PATCH /users/{id}/role.
type RoleChange struct {
	Role Role `json:"role"`
}

// StatusChange is the body of the status action endpoints.
type StatusChange struct {
	Status string `json:"status"`
}
