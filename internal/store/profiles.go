package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/models"
)

type ProfileInput struct {
	DisplayName    string
	AvatarURL      string
	TelegramHandle string
	WhatsappNumber string
	FacebookLink   string
}

// UpsertProfile writes the caller's own contact card. One profile per user.
func UpsertProfile(ctx context.Context, db *sql.DB, userID uuid.UUID, in ProfileInput) (*models.Profile, error) {
	profile := &models.Profile{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO profiles (user_id, display_name, avatar_url, telegram_handle, whatsapp_number, facebook_link, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET display_name = EXCLUDED.display_name,
		     avatar_url = EXCLUDED.avatar_url,
		     telegram_handle = EXCLUDED.telegram_handle,
		     whatsapp_number = EXCLUDED.whatsapp_number,
		     facebook_link = EXCLUDED.facebook_link,
		     updated_at = NOW()
		 RETURNING id, user_id, display_name, avatar_url, telegram_handle, whatsapp_number, facebook_link, created_at, updated_at`,
		userID, in.DisplayName, in.AvatarURL, in.TelegramHandle, in.WhatsappNumber, in.FacebookLink).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.TelegramHandle,
		&profile.WhatsappNumber,
		&profile.FacebookLink,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	return profile, nil
}

func GetProfile(ctx context.Context, db *sql.DB, userID uuid.UUID) (*models.Profile, error) {
	profile := &models.Profile{}

	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, display_name, avatar_url, telegram_handle, whatsapp_number, facebook_link, created_at, updated_at
		 FROM profiles
		 WHERE user_id = $1`,
		userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.TelegramHandle,
		&profile.WhatsappNumber,
		&profile.FacebookLink,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return profile, nil
}
