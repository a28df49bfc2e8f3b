// internal/membership/store.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"librarium/internal/database"
)

// MemberStore is the persistence contract for members.
type MemberStore interface {
	Insert(ctx context.Context, q database.Querier, member *Member) error
	Update(ctx context.Context, q database.Querier, member *Member) error
	SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error
	GetByID(ctx context.Context, q database.Querier, id int64) (*Member, error)
	GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Member, error)
	GetByUserID(ctx context.Context, q database.Querier, userID int64) (*Member, error)
	ListActive(ctx context.Context, q database.Querier) ([]Member, error)
	CountActivePhone(ctx context.Context, q database.Querier, phone string, excludeID int64) (int, error)
	CountActiveLoans(ctx context.Context, q database.Querier, memberID int64) (int, error)
}

// UserStore is the persistence contract for users.
type UserStore interface {
	Insert(ctx context.Context, q database.Querier, user *User) error
	Update(ctx context.Context, q database.Querier, user *User) error
	SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error
	GetByID(ctx context.Context, q database.Querier, id int64) (*User, error)
	GetByUsername(ctx context.Context, q database.Querier, username string) (*User, error)
	GetByEmail(ctx context.Context, q database.Querier, email string) (*User, error)
	ListActive(ctx context.Context, q database.Querier) ([]User, error)
	FindByRole(ctx context.Context, q database.Querier, role Role) ([]User, error)
	CountActiveUsername(ctx context.Context, q database.Querier, username string, excludeID int64) (int, error)
	CountActiveEmail(ctx context.Context, q database.Querier, email string, excludeID int64) (int, error)
	UpdateLastLogin(ctx context.Context, q database.Querier, id int64, at time.Time) error
}

const memberColumns = `id, user_id, member_number, first_name, last_name, phone, address,
	date_of_birth, membership_date, membership_expiry_date, membership_status,
	is_active, created_at, updated_at`

// PGMemberStore implements MemberStore against Postgres.
type PGMemberStore struct{}

func NewMemberStore() *PGMemberStore {
	return &PGMemberStore{}
}

func (s *PGMemberStore) Insert(ctx context.Context, q database.Querier, member *Member) error {
	query := `
		INSERT INTO members (user_id, member_number, first_name, last_name, phone, address,
		                     date_of_birth, membership_date, membership_expiry_date,
		                     membership_status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	err := q.QueryRowxContext(ctx, query,
		member.UserID, member.MemberNumber, member.FirstName, member.LastName,
		member.Phone, member.Address, member.DateOfBirth, member.MembershipDate,
		member.MembershipExpiryDate, member.MembershipStatus, member.IsActive,
		member.CreatedAt, member.UpdatedAt,
	).Scan(&member.ID)
	if err != nil {
		return database.TranslateError(fmt.Errorf("insert member: %w", err))
	}
	return nil
}

func (s *PGMemberStore) Update(ctx context.Context, q database.Querier, member *Member) error {
	query := `
		UPDATE members
		SET first_name = $1, last_name = $2, phone = $3, address = $4,
		    date_of_birth = $5, membership_expiry_date = $6, membership_status = $7,
		    is_active = $8, updated_at = $9
		WHERE id = $10`

	_, err := q.ExecContext(ctx, query,
		member.FirstName, member.LastName, member.Phone, member.Address,
		member.DateOfBirth, member.MembershipExpiryDate, member.MembershipStatus,
		member.IsActive, member.UpdatedAt, member.ID,
	)
	if err != nil {
		return database.TranslateError(fmt.Errorf("update member: %w", err))
	}
	return nil
}

// SoftDelete deactivates the member and suspends the membership in one step.
func (s *PGMemberStore) SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE members SET is_active = FALSE, membership_status = $1, updated_at = $2 WHERE id = $3`,
		StatusSuspended, at, id)
	if err != nil {
		return fmt.Errorf("soft delete member: %w", err)
	}
	return nil
}

func (s *PGMemberStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Member, error) {
	var member Member
	err := sqlx.GetContext(ctx, q, &member,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &member, nil
}

// GetByIDForUpdate locks the member row for the remainder of the transaction.
// It serializes a soft delete against a concurrent borrow; workflows that
// also touch a book row take the book lock before this one.
func (s *PGMemberStore) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Member, error) {
	var member Member
	err := sqlx.GetContext(ctx, q, &member,
		`SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock member: %w", err)
	}
	return &member, nil
}

func (s *PGMemberStore) GetByUserID(ctx context.Context, q database.Querier, userID int64) (*Member, error) {
	var member Member
	err := sqlx.GetContext(ctx, q, &member,
		`SELECT `+memberColumns+` FROM members WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member by user: %w", err)
	}
	return &member, nil
}

func (s *PGMemberStore) ListActive(ctx context.Context, q database.Querier) ([]Member, error) {
	members := []Member{}
	err := sqlx.SelectContext(ctx, q, &members,
		`SELECT `+memberColumns+` FROM members WHERE is_active ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *PGMemberStore) CountActivePhone(ctx context.Context, q database.Querier, phone string, excludeID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM members WHERE phone = $1 AND is_active AND ($2 = 0 OR id <> $2)`,
		phone, excludeID)
	if err != nil {
		return 0, fmt.Errorf("count members by phone: %w", err)
	}
	return count, nil
}

func (s *PGMemberStore) CountActiveLoans(ctx context.Context, q database.Querier, memberID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM loans WHERE member_id = $1 AND status = 'Borrowed'`, memberID)
	if err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return count, nil
}

const userColumns = `id, username, email, password_hash, salt, role, is_active,
	last_login_at, created_at, updated_at`

// PGUserStore implements UserStore against Postgres.
type PGUserStore struct{}

func NewUserStore() *PGUserStore {
	return &PGUserStore{}
}

func (s *PGUserStore) Insert(ctx context.Context, q database.Querier, user *User) error {
	query := `
		INSERT INTO users (username, email, password_hash, salt, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := q.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Salt, user.Role,
		user.IsActive, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return database.TranslateError(fmt.Errorf("insert user: %w", err))
	}
	return nil
}

func (s *PGUserStore) Update(ctx context.Context, q database.Querier, user *User) error {
	query := `
		UPDATE users
		SET username = $1, email = $2, password_hash = $3, salt = $4, role = $5, updated_at = $6
		WHERE id = $7`

	_, err := q.ExecContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Salt, user.Role,
		user.UpdatedAt, user.ID,
	)
	if err != nil {
		return database.TranslateError(fmt.Errorf("update user: %w", err))
	}
	return nil
}

func (s *PGUserStore) SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	return nil
}

func (s *PGUserStore) GetByID(ctx context.Context, q database.Querier, id int64) (*User, error) {
	var user User
	err := sqlx.GetContext(ctx, q, &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *PGUserStore) GetByUsername(ctx context.Context, q database.Querier, username string) (*User, error) {
	var user User
	err := sqlx.GetContext(ctx, q, &user,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1) AND is_active`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &user, nil
}

func (s *PGUserStore) GetByEmail(ctx context.Context, q database.Querier, email string) (*User, error) {
	var user User
	err := sqlx.GetContext(ctx, q, &user,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) AND is_active`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

func (s *PGUserStore) ListActive(ctx context.Context, q database.Querier) ([]User, error) {
	users := []User{}
	err := sqlx.SelectContext(ctx, q, &users,
		`SELECT `+userColumns+` FROM users WHERE is_active ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PGUserStore) FindByRole(ctx context.Context, q database.Querier, role Role) ([]User, error) {
	users := []User{}
	err := sqlx.SelectContext(ctx, q, &users,
		`SELECT `+userColumns+` FROM users WHERE role = $1 AND is_active ORDER BY username`, role)
	if err != nil {
		return nil, fmt.Errorf("find users by role: %w", err)
	}
	return users, nil
}

func (s *PGUserStore) CountActiveUsername(ctx context.Context, q database.Querier, username string, excludeID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM users WHERE LOWER(username) = LOWER($1) AND is_active AND ($2 = 0 OR id <> $2)`,
		username, excludeID)
	if err != nil {
		return 0, fmt.Errorf("count users by username: %w", err)
	}
	return count, nil
}

func (s *PGUserStore) CountActiveEmail(ctx context.Context, q database.Querier, email string, excludeID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM users WHERE LOWER(email) = LOWER($1) AND is_active AND ($2 = 0 OR id <> $2)`,
		email, excludeID)
	if err != nil {
		return 0, fmt.Errorf("count users by email: %w", err)
	}
	return count, nil
}

func (s *PGUserStore) UpdateLastLogin(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
