package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/models"
	"github.com/adhamel/storefront/internal/store"
)

func TestRoleDirectoryDefaults(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := createTestAdmin(t, db, "admin@example.com")
	user := createTestUser(t, db, "user@example.com")

	role, err := store.GetRole(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get role: %v", err)
	}
	if role != models.RoleUser {
		t.Errorf("Expected user role, got %s", role)
	}

	// An identity with no role row at all still resolves, and never to admin.
	unknown := uuid.New()
	role, err = store.GetRole(ctx, db, unknown)
	if err != nil {
		t.Fatalf("Get role for unknown user: %v", err)
	}
	if role != models.RoleUser {
		t.Errorf("Expected default user role for unknown identity, got %s", role)
	}
	if got, err := store.IsAdmin(ctx, db, unknown); err != nil || got {
		t.Errorf("Unknown identity must not be admin (admin=%v, err=%v)", got, err)
	}

	if isAdmin, err := store.IsAdmin(ctx, db, admin.ID); err != nil || !isAdmin {
		t.Errorf("Expected admin predicate true (admin=%v, err=%v)", isAdmin, err)
	}
}

func TestAssignRole(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := createTestAdmin(t, db, "admin@example.com")
	user := createTestUser(t, db, "user@example.com")
	other := createTestUser(t, db, "other@example.com")

	// Only admins mutate the directory.
	if err := store.AssignRole(ctx, db, user.ID, other.ID, models.RoleAdmin); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("Expected forbidden, got %v", err)
	}

	if err := store.AssignRole(ctx, db, admin.ID, user.ID, models.RoleAdmin); err != nil {
		t.Fatalf("Promote user: %v", err)
	}
	if isAdmin, _ := store.IsAdmin(ctx, db, user.ID); !isAdmin {
		t.Error("User should be admin after promotion")
	}

	// Demotion writes an explicit user row rather than deleting.
	if err := store.AssignRole(ctx, db, admin.ID, user.ID, models.RoleUser); err != nil {
		t.Fatalf("Demote user: %v", err)
	}
	if isAdmin, _ := store.IsAdmin(ctx, db, user.ID); isAdmin {
		t.Error("User should not be admin after demotion")
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_roles WHERE user_id = $1`, user.ID).Scan(&count); err != nil {
		t.Fatalf("Count role rows: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one role row, got %d", count)
	}

	if err := store.AssignRole(ctx, db, admin.ID, user.ID, "owner"); !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected validation error for unknown role, got %v", err)
	}
	if err := store.AssignRole(ctx, db, admin.ID, uuid.New(), models.RoleUser); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found for unknown target, got %v", err)
	}
}

func TestRegistrationAndLogin(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "Person@Example.com", "Person", "s3cret-pass")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	if user.Email != "person@example.com" {
		t.Errorf("Expected normalized email, got %s", user.Email)
	}

	if _, err := store.CreateUser(ctx, db, "person@example.com", "Dup", "another-pass"); !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected validation error for duplicate email, got %v", err)
	}
	if _, err := store.CreateUser(ctx, db, "short@example.com", "Short", "short"); !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected validation error for short password, got %v", err)
	}

	got, err := store.Authenticate(ctx, db, "person@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Authenticated wrong user")
	}

	if _, err := store.Authenticate(ctx, db, "person@example.com", "wrong"); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("Expected forbidden for bad password, got %v", err)
	}
	if _, err := store.Authenticate(ctx, db, "ghost@example.com", "whatever"); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("Expected forbidden for unknown email, got %v", err)
	}
}

func TestProfileUpsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "user@example.com")

	created, err := store.UpsertProfile(ctx, db, user.ID, store.ProfileInput{
		DisplayName:    "U",
		TelegramHandle: "@u",
	})
	if err != nil {
		t.Fatalf("Upsert profile: %v", err)
	}

	updated, err := store.UpsertProfile(ctx, db, user.ID, store.ProfileInput{
		DisplayName:    "U2",
		WhatsappNumber: "+100000000",
	})
	if err != nil {
		t.Fatalf("Upsert profile again: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("Expected upsert to reuse the profile row")
	}
	if updated.DisplayName != "U2" || updated.TelegramHandle != "" {
		t.Errorf("Upsert did not replace fields: %+v", updated)
	}

	got, err := store.GetProfile(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}
	if got.DisplayName != "U2" {
		t.Errorf("Expected stored profile, got %+v", got)
	}
}
