package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/auth"
	"github.com/adhamel/storefront/internal/database"
	"github.com/adhamel/storefront/internal/models"
)

// CreateUser provisions an account: the user row and its default role row
// are written in one transaction so the role directory never lags behind.
func CreateUser(ctx context.Context, db *sql.DB, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationErr("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, validationErr("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO users (email, name, password_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, NOW(), NOW())
			 RETURNING id, email, name, created_at, updated_at`,
			email, name, hash).Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err, "users_email_key") {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role, created_at)
			 VALUES ($1, $2, NOW())`,
			user.ID, models.RoleUser)
		if err != nil {
			return fmt.Errorf("create role row: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate checks credentials and returns the account. The caller gets
// the same error for a missing account and a wrong password.
func Authenticate(ctx context.Context, db *sql.DB, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user := &models.User{}
	var hash string
	err := db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM users
		 WHERE email = $1`,
		email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&hash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if !auth.CheckPassword(hash, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.User, error) {
	user := &models.User{}

	err := db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at
		 FROM users
		 WHERE id = $1`,
		id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
