package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// historyRepo implements the History repository
type historyRepo struct {
	db *sql.DB
}

// NewHistoryRepo creates a new History repository
func NewHistoryRepo(dbPath string) (repo.HistoryRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Create table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			platform TEXT NOT NULL,
			source_message_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			content TEXT NOT NULL,
			received_at INTEGER NOT NULL,
			responded INTEGER NOT NULL DEFAULT 0,
			reply TEXT NOT NULL DEFAULT '',
			responded_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(platform, source_message_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_received_at ON messages(received_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &historyRepo{db: db}, nil
}

// Record stores a message, returning false if it was already recorded
func (r *historyRepo) Record(ctx context.Context, msg *domain.InboundMessage) (bool, error) {
	sourceID := msg.SourceMessageID
	if sourceID == "" {
		// No platform ID: never deduplicate
		sourceID = fmt.Sprintf("local-%d", time.Now().UnixNano())
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (platform, source_message_id, chat_id, user_id, sender_name, content, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(msg.Platform),
		sourceID,
		msg.ChatID,
		msg.UserID,
		msg.SenderName,
		msg.Content,
		msg.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record message: %w", err)
	}
	return n > 0, nil
}

// MarkResponded stores the reply sent for a message
func (r *historyRepo) MarkResponded(ctx context.Context, msg *domain.InboundMessage, reply string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET responded = 1, reply = ?, responded_at = ?
		WHERE platform = ? AND source_message_id = ?
	`, reply, time.Now().UnixMilli(), string(msg.Platform), msg.SourceMessageID)
	if err != nil {
		return fmt.Errorf("failed to mark responded: %w", err)
	}
	return nil
}

// Recent returns the newest messages first
func (r *historyRepo) Recent(ctx context.Context, limit int) ([]*domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, platform, source_message_id, chat_id, user_id, sender_name, content,
		       received_at, responded, reply, responded_at
		FROM messages
		ORDER BY received_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var platform string
		var receivedAt, respondedAt int64
		var responded int
		if err := rows.Scan(&e.ID, &platform, &e.SourceMessageID, &e.ChatID, &e.UserID, &e.SenderName,
			&e.Content, &receivedAt, &responded, &e.Reply, &respondedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		e.Platform = domain.Platform(platform)
		e.ReceivedAt = time.UnixMilli(receivedAt)
		e.Responded = responded != 0
		if respondedAt > 0 {
			t := time.UnixMilli(respondedAt)
			e.RespondedAt = &t
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CleanupOld deletes messages received before the cutoff
func (r *historyRepo) CleanupOld(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE received_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup messages: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (r *historyRepo) Close() error {
	return r.db.Close()
}
