// internal/database/migration.go
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"librarium/pkg/logger"
)

type migration struct {
	name string
	stmt string
}

// Schema notes: the soft-delete flag is an explicit column filtered in every
// read path, and the active-scope uniqueness rules are backed by partial
// unique indexes so concurrent creates cannot slip past the service checks.
// Loans keep RESTRICT foreign keys: a book or member row is never removed
// while the ledger references it.
var migrations = []migration{
	{
		name: "001_create_categories",
		stmt: `
		CREATE TABLE IF NOT EXISTS categories (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS categories_name_active_uq
			ON categories (LOWER(name)) WHERE is_active;`,
	},
	{
		name: "002_create_users",
		stmt: `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(50) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'Member',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS users_username_active_uq
			ON users (LOWER(username)) WHERE is_active;
		CREATE UNIQUE INDEX IF NOT EXISTS users_email_active_uq
			ON users (LOWER(email)) WHERE is_active;`,
	},
	{
		name: "003_create_members",
		stmt: `
		CREATE TABLE IF NOT EXISTS members (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE RESTRICT,
			member_number VARCHAR(20) NOT NULL UNIQUE,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			phone VARCHAR(20),
			address VARCHAR(500),
			date_of_birth DATE,
			membership_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			membership_expiry_date TIMESTAMPTZ,
			membership_status VARCHAR(20) NOT NULL DEFAULT 'Active',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS members_phone_active_uq
			ON members (phone) WHERE is_active AND phone IS NOT NULL AND phone <> '';`,
	},
	{
		name: "004_create_books",
		stmt: `
		CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			isbn VARCHAR(13) NOT NULL,
			title VARCHAR(255) NOT NULL,
			author VARCHAR(255) NOT NULL,
			publisher VARCHAR(255),
			publication_year INT,
			genre VARCHAR(100),
			description TEXT,
			total_copies INT NOT NULL DEFAULT 1 CHECK (total_copies >= 0),
			location VARCHAR(100),
			cover_image_url VARCHAR(500),
			category_id BIGINT REFERENCES categories(id) ON DELETE RESTRICT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS books_isbn_active_uq
			ON books (isbn) WHERE is_active;
		CREATE INDEX IF NOT EXISTS books_category_idx ON books (category_id);
		CREATE INDEX IF NOT EXISTS books_author_idx ON books (author);`,
	},
	{
		name: "005_create_loans",
		stmt: `
		CREATE TABLE IF NOT EXISTS loans (
			id BIGSERIAL PRIMARY KEY,
			book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE RESTRICT,
			member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE RESTRICT,
			loan_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			due_date TIMESTAMPTZ NOT NULL,
			return_date TIMESTAMPTZ,
			status VARCHAR(20) NOT NULL DEFAULT 'Borrowed',
			notes VARCHAR(500),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS loans_book_status_idx ON loans (book_id, status);
		CREATE INDEX IF NOT EXISTS loans_member_status_idx ON loans (member_id, status);
		CREATE UNIQUE INDEX IF NOT EXISTS loans_member_book_borrowed_uq
			ON loans (member_id, book_id) WHERE status = 'Borrowed';`,
	},
}

// Migrate applies any schema migrations that have not been recorded yet.
func Migrate(ctx context.Context, db *sqlx.DB, log logger.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err := db.QueryRowxContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, m.name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if applied {
			continue
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}

		log.Info("applied migration", map[string]interface{}{"name": m.name})
	}

	return nil
}
