// internal/membership/service.go
package membership

import (
	"context"
)

// MemberService defines the membership operations for members.
type MemberService interface {
	Create(ctx context.Context, member *Member) (*Member, error)
	Update(ctx context.Context, id int64, member *Member) (*Member, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Member, error)
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	List(ctx context.Context) ([]Member, error)
	IsPhoneUnique(ctx context.Context, phone string, excludeID int64) (bool, error)
	ActiveLoanCount(ctx context.Context, memberID int64) (int, error)
}

// UserService defines the membership operations for login accounts.
type UserService interface {
	Create(ctx context.Context, user *User, password string) (*User, error)
	Update(ctx context.Context, id int64, user *User, password string) (*User, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	FindByRole(ctx context.Context, role string) ([]User, error)
	IsUsernameUnique(ctx context.Context, username string, excludeID int64) (bool, error)
	IsEmailUnique(ctx context.Context, email string, excludeID int64) (bool, error)
	Login(ctx context.Context, username, password string) (*User, string, error)
}
