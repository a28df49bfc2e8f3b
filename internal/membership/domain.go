// internal/membership/domain.go
package membership

import (
	"strings"
	"time"
)

// MembershipStatus tracks the standing of a member.
type MembershipStatus string

const (
	StatusActive    MembershipStatus = "Active"
	StatusSuspended MembershipStatus = "Suspended"
	StatusExpired   MembershipStatus = "Expired"
)

// ParseMembershipStatus matches a status case-insensitively.
func ParseMembershipStatus(s string) (MembershipStatus, bool) {
	switch strings.ToLower(s) {
	case "active":
		return StatusActive, true
	case "suspended":
		return StatusSuspended, true
	case "expired":
		return StatusExpired, true
	}
	return "", false
}

// Role is the access level of a user account.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleLibrarian Role = "Librarian"
	RoleMember    Role = "Member"
)

// ParseRole matches a role case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(s) {
	case "admin":
		return RoleAdmin, true
	case "librarian":
		return RoleLibrarian, true
	case "member":
		return RoleMember, true
	}
	return "", false
}

// User is a login account. The hash and salt never appear in responses.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Salt         string     `json:"-" db:"salt"`
	Role         Role       `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Member is a library patron linked one-to-one with a User.
type Member struct {
	ID                   int64            `json:"id" db:"id"`
	UserID               int64            `json:"user_id" db:"user_id"`
	MemberNumber         string           `json:"member_number" db:"member_number"`
	FirstName            string           `json:"first_name" db:"first_name"`
	LastName             string           `json:"last_name" db:"last_name"`
	Phone                *string          `json:"phone,omitempty" db:"phone"`
	Address              *string          `json:"address,omitempty" db:"address"`
	DateOfBirth          *time.Time       `json:"date_of_birth,omitempty" db:"date_of_birth"`
	MembershipDate       time.Time        `json:"membership_date" db:"membership_date"`
	MembershipExpiryDate *time.Time       `json:"membership_expiry_date,omitempty" db:"membership_expiry_date"`
	MembershipStatus     MembershipStatus `json:"membership_status" db:"membership_status"`
	IsActive             bool             `json:"is_active" db:"is_active"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}
