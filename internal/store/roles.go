package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/models"
)

// GetRole returns the user's role from the role directory. A user with no
// row has the default role: admin capability is granted only by an explicit
// admin row.
func GetRole(ctx context.Context, db *sql.DB, userID uuid.UUID) (models.Role, error) {
	var role models.Role

	err := db.QueryRowContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1`,
		userID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.RoleUser, nil
		}
		return "", fmt.Errorf("get role: %w", err)
	}

	return role, nil
}

func IsAdmin(ctx context.Context, db *sql.DB, userID uuid.UUID) (bool, error) {
	role, err := GetRole(ctx, db, userID)
	if err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}

// requireAdmin is the capability check every admin-gated operation runs
// before touching anything else.
func requireAdmin(ctx context.Context, db *sql.DB, actorID uuid.UUID) error {
	admin, err := IsAdmin(ctx, db, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrAdminRequired
	}
	return nil
}

// AssignRole upserts a user's role. Only an existing admin may change role
// assignments; rows are never deleted, a demotion writes an explicit
// 'user' row.
func AssignRole(ctx context.Context, db *sql.DB, actorID, userID uuid.UUID, role models.Role) error {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return err
	}
	if !role.Valid() {
		return validationErr("unknown role %q", role)
	}

	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
		userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`,
		userID, role)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}
