package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/database"
	"github.com/adhamel/storefront/internal/models"
)

// GetOrCreateChat returns the user's single support thread, creating it
// lazily. Concurrent first calls race on the unique user_id; the losing
// insert is a no-op and both callers get the same row.
func GetOrCreateChat(ctx context.Context, db *sql.DB, userID uuid.UUID) (*models.Chat, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO chats (user_id, is_read_by_admin, created_at)
		 VALUES ($1, TRUE, NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	chat := &models.Chat{}
	err = db.QueryRowContext(ctx,
		`SELECT id, user_id, last_message_at, is_read_by_admin, created_at
		 FROM chats
		 WHERE user_id = $1`,
		userID).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.LastMessageAt,
		&chat.ReadByAdmin,
		&chat.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}

	return chat, nil
}

// PostMessage appends to a chat. A user may only write to their own thread;
// an admin message requires the admin role. The chat row is locked for the
// duration so the per-chat sequence is gapless and strictly increasing even
// when created_at ties.
func PostMessage(ctx context.Context, db *sql.DB, senderID, chatID uuid.UUID, content string, fromAdmin bool) (*models.Message, error) {
	if content == "" {
		return nil, validationErr("message content is required")
	}

	if fromAdmin {
		if err := requireAdmin(ctx, db, senderID); err != nil {
			return nil, err
		}
	}

	message := &models.Message{}
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var ownerID uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM chats WHERE id = $1 FOR UPDATE`,
			chatID).Scan(&ownerID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrChatNotFound
			}
			return fmt.Errorf("lock chat: %w", err)
		}

		if !fromAdmin && senderID != ownerID {
			return fmt.Errorf("%w: not the chat owner", ErrForbidden)
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO messages (chat_id, seq, sender_id, is_from_admin, content, created_at)
			 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, NOW()
			 FROM messages WHERE chat_id = $1
			 RETURNING id, chat_id, seq, sender_id, is_from_admin, content, created_at`,
			chatID, senderID, fromAdmin, content).Scan(
			&message.ID,
			&message.ChatID,
			&message.Seq,
			&message.SenderID,
			&message.FromAdmin,
			&message.Content,
			&message.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		// An incoming user message flips the thread unread for admins; an
		// admin reply counts as having read it.
		_, err = tx.ExecContext(ctx,
			`UPDATE chats
			 SET last_message_at = $2, is_read_by_admin = $3
			 WHERE id = $1`,
			chatID, message.CreatedAt, fromAdmin)
		if err != nil {
			return fmt.Errorf("update chat: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return message, nil
}

// ListMessages returns messages after a sequence position, oldest first.
// Pass afterSeq 0 for the whole thread. Owner or admin only.
func ListMessages(ctx context.Context, db *sql.DB, actorID, chatID uuid.UUID, afterSeq int64, limit int) ([]models.Message, error) {
	var ownerID uuid.UUID
	err := db.QueryRowContext(ctx,
		`SELECT user_id FROM chats WHERE id = $1`,
		chatID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}

	if actorID != ownerID {
		admin, err := IsAdmin(ctx, db, actorID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, fmt.Errorf("%w: not the chat owner", ErrForbidden)
		}
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, chat_id, seq, sender_id, is_from_admin, content, created_at
		 FROM messages
		 WHERE chat_id = $1 AND seq > $2
		 ORDER BY seq
		 LIMIT $3`,
		chatID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		err := rows.Scan(
			&message.ID,
			&message.ChatID,
			&message.Seq,
			&message.SenderID,
			&message.FromAdmin,
			&message.Content,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

// MarkChatRead clears the unread flag. Admin only; the flag tracks whether
// an admin has seen the latest user messages.
func MarkChatRead(ctx context.Context, db *sql.DB, adminID, chatID uuid.UUID) error {
	if err := requireAdmin(ctx, db, adminID); err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE chats SET is_read_by_admin = TRUE WHERE id = $1`,
		chatID)
	if err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrChatNotFound
	}

	return nil
}

// ListChats is the admin inbox: unread threads first, then most recent
// activity.
func ListChats(ctx context.Context, db *sql.DB, adminID uuid.UUID, limit int) ([]models.Chat, error) {
	if err := requireAdmin(ctx, db, adminID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, last_message_at, is_read_by_admin, created_at
		 FROM chats
		 ORDER BY is_read_by_admin, last_message_at DESC NULLS LAST
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		err := rows.Scan(
			&chat.ID,
			&chat.UserID,
			&chat.LastMessageAt,
			&chat.ReadByAdmin,
			&chat.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return chats, nil
}
