// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/models"
)

// InsertMessage persists a new message and assigns its ID and timestamp.
func (db *DB) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO messages (title, content, target_type, creator_id, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`

	err := db.conn.QueryRowContext(ctx, query,
		msg.Title, msg.Content, int(msg.TargetType), msg.CreatorID, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// BulkInsertRecipients creates unread delivery links between a message and
// the given users in a single transaction. Duplicate (message, user) pairs
// are ignored, which makes re-dispatch idempotent.
func (db *DB) BulkInsertRecipients(ctx context.Context, messageID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO message_recipients (message_id, user_id, created_at)
		 VALUES (?, ?, ?) ON CONFLICT (message_id, user_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare recipient insert: %w", err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Error closing prepared statement")
		}
	}()

	now := time.Now().UTC()
	for _, userID := range userIDs {
		if _, err := stmt.ExecContext(ctx, messageID, userID, now); err != nil {
			return fmt.Errorf("failed to insert recipient link for user %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recipient links: %w", err)
	}

	return nil
}

// RecipientIDs returns the user IDs linked to a message, in ascending order.
func (db *DB) RecipientIDs(ctx context.Context, messageID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM message_recipients WHERE message_id = ? ORDER BY user_id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer closeRows(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnreadCount returns the number of unread messages for a user.
func (db *DB) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message_recipients WHERE user_id = ? AND is_read = FALSE`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// MarkRead marks a message as read for a user.
// Returns ErrNotRecipient if the user was never targeted by the message.
// Marking an already-read message is a no-op and succeeds.
func (db *DB) MarkRead(ctx context.Context, messageID, userID int64) error {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM message_recipients WHERE message_id = ? AND user_id = ?`,
		messageID, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check recipient link: %w", err)
	}
	if !exists {
		return ErrNotRecipient
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE message_recipients SET is_read = TRUE WHERE message_id = ? AND user_id = ?`,
		messageID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

// GetMessage returns a message by ID, or ErrNotFound.
func (db *DB) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	var msg models.Message
	var targetType int
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, content, target_type, creator_id, created_at FROM messages WHERE id = ?`, id,
	).Scan(&msg.ID, &msg.Title, &msg.Content, &targetType, &msg.CreatorID, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message %d: %w", id, err)
	}
	msg.TargetType = models.TargetType(targetType)
	return &msg, nil
}

// ListInbox returns a page of a user's messages, newest first, together with
// the total number of messages addressed to the user.
func (db *DB) ListInbox(ctx context.Context, userID int64, limit, offset int) ([]models.InboxEntry, int, error) {
	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message_recipients WHERE user_id = ?`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count inbox: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.id, m.title, m.content, m.target_type, m.creator_id, m.created_at, r.is_read
		 FROM message_recipients r
		 JOIN messages m ON m.id = r.message_id
		 WHERE r.user_id = ?
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query inbox: %w", err)
	}
	defer closeRows(rows)

	var entries []models.InboxEntry
	for rows.Next() {
		var e models.InboxEntry
		var targetType int
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &targetType, &e.CreatorID, &e.CreatedAt, &e.IsRead); err != nil {
			return nil, 0, fmt.Errorf("failed to scan inbox entry: %w", err)
		}
		e.TargetType = models.TargetType(targetType)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// rollbackQuietly rolls back a transaction, ignoring the error returned when
// the transaction was already committed.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Debug().Err(err).Msg("Error rolling back transaction")
	}
}

// closeRows closes a result set, logging errors at debug level.
func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Debug().Err(err).Msg("Error closing rows")
	}
}
