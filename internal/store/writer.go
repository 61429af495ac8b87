package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mediastash/mediastash/internal/parser"
)

// Stats summarizes one import operation. Senders is a fresh count over
// the whole store, not just the rows this merge touched.
type Stats struct {
	ImportID      string `json:"import_id"`
	Conversations int    `json:"conversations"`
	Media         int    `json:"media"`
	Senders       int    `json:"senders"`
}

// ImportSources parses every export root, then replaces the data of
// exactly those sources inside a single transaction. A parse failure
// in any source leaves the store untouched.
func (s *Store) ImportSources(ctx context.Context, paths []string, window int) (Stats, error) {
	importID := uuid.NewString()
	log := s.log.With().Str("import_id", importID).Logger()

	var conversations []parser.Conversation
	var sourcePaths []string
	for _, path := range paths {
		normalized := filepath.Clean(path)
		result, err := parser.ParseExport(log, normalized, window)
		if err != nil {
			return Stats{}, fmt.Errorf("error parsing %s: %w", path, err)
		}
		conversations = append(conversations, result.Conversations...)
		sourcePaths = append(sourcePaths, normalized)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.merge(ctx, sourcePaths, conversations)
	if err != nil {
		return Stats{}, err
	}
	stats.ImportID = importID

	log.Info().
		Int("conversations", stats.Conversations).
		Int("media", stats.Media).
		Int("senders", stats.Senders).
		Msg("Import complete")
	return stats, nil
}

// AddSource imports one additional export root additively, replacing
// only prior data from the same path.
func (s *Store) AddSource(ctx context.Context, path string, window int) (Stats, error) {
	importID := uuid.NewString()
	log := s.log.With().Str("import_id", importID).Logger()

	normalized := filepath.Clean(path)
	result, err := parser.ParseExport(log, normalized, window)
	if err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.merge(ctx, []string{normalized}, result.Conversations)
	if err != nil {
		return Stats{}, err
	}
	stats.ImportID = importID

	log.Info().
		Str("source", normalized).
		Int("conversations", stats.Conversations).
		Int("media", stats.Media).
		Int("senders", stats.Senders).
		Msg("Added source")
	return stats, nil
}

// RemoveSource deletes every row attributable to the given source path.
func (s *Store) RemoveSource(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearSource(tx, filepath.Clean(path)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ClearAll removes every row and reclaims on-disk space.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{"context_messages", "media", "conversation_participants", "senders", "conversations"}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	// VACUUM cannot run inside a transaction.
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	return nil
}

// merge is the delete-then-insert core shared by ImportSources and
// AddSource. Caller must hold the store lock.
func (s *Store) merge(ctx context.Context, sourcePaths []string, conversations []parser.Conversation) (Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, sourcePath := range sourcePaths {
		if err := clearSource(tx, sourcePath); err != nil {
			return Stats{}, err
		}
	}

	stats, err := insertAll(tx, conversations)
	if err != nil {
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("failed to commit: %w", err)
	}
	return stats, nil
}

// clearSource deletes all rows attributable to one source path, child
// tables first, then prunes orphaned senders. Cascading deletes are
// managed here explicitly, never declaratively.
func clearSource(tx *sql.Tx, sourcePath string) error {
	stmts := []string{
		`DELETE FROM context_messages WHERE media_id IN (
			SELECT m.id FROM media m
			JOIN conversations c ON c.id = m.conversation_id
			WHERE c.source_path = ?)`,
		`DELETE FROM media WHERE conversation_id IN (
			SELECT id FROM conversations WHERE source_path = ?)`,
		`DELETE FROM conversation_participants WHERE conversation_id IN (
			SELECT id FROM conversations WHERE source_path = ?)`,
		`DELETE FROM conversations WHERE source_path = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, sourcePath); err != nil {
			return fmt.Errorf("failed to clear source %s: %w", sourcePath, err)
		}
	}
	return pruneOrphanSenders(tx)
}

// pruneOrphanSenders removes senders no longer referenced by any
// remaining row. Run as an explicit invariant-maintenance step at the
// end of every deletion.
func pruneOrphanSenders(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DELETE FROM senders WHERE
			id NOT IN (SELECT sender_id FROM media)
			AND id NOT IN (SELECT sender_id FROM conversation_participants)
			AND id NOT IN (SELECT sender_id FROM context_messages)`)
	if err != nil {
		return fmt.Errorf("failed to prune orphaned senders: %w", err)
	}
	return nil
}

func insertAll(tx *sql.Tx, conversations []parser.Conversation) (Stats, error) {
	var stats Stats

	// get-or-create is read-then-insert, race-free only because the
	// whole merge holds the store lock. The cache just avoids repeated
	// lookups within one merge.
	senders := make(map[string]int64)

	for _, conv := range conversations {
		res, err := tx.Exec(`
			INSERT INTO conversations
				(folder_name, title, chat_type, participant_count, thread_path, source_type, source_path)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conv.FolderName, conv.Title, conv.ChatType, len(conv.Participants),
			conv.ThreadPath, string(conv.SourceType), conv.SourcePath)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to insert conversation %s: %w", conv.FolderName, err)
		}
		convID, err := res.LastInsertId()
		if err != nil {
			return Stats{}, fmt.Errorf("failed to get conversation id: %w", err)
		}
		stats.Conversations++

		for _, name := range conv.Participants {
			senderID, err := getOrCreateSender(tx, senders, name)
			if err != nil {
				return Stats{}, err
			}
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO conversation_participants (conversation_id, sender_id) VALUES (?, ?)",
				convID, senderID); err != nil {
				return Stats{}, fmt.Errorf("failed to insert participant: %w", err)
			}
		}

		for _, media := range conv.Media {
			mediaID, err := insertMedia(tx, senders, convID, media)
			if err != nil {
				return Stats{}, err
			}
			stats.Media++

			for i, msg := range media.ContextBefore {
				position := -len(media.ContextBefore) + i
				if err := insertContextMessage(tx, senders, mediaID, msg, position); err != nil {
					return Stats{}, err
				}
			}
			for i, msg := range media.ContextAfter {
				if err := insertContextMessage(tx, senders, mediaID, msg, i+1); err != nil {
					return Stats{}, err
				}
			}
		}
	}

	if err := tx.QueryRow("SELECT COUNT(*) FROM senders").Scan(&stats.Senders); err != nil {
		return Stats{}, fmt.Errorf("failed to count senders: %w", err)
	}
	return stats, nil
}

func getOrCreateSender(tx *sql.Tx, cache map[string]int64, name string) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRow("SELECT id FROM senders WHERE name = ?", name).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec("INSERT INTO senders (name) VALUES (?)", name)
		if err != nil {
			return 0, fmt.Errorf("failed to insert sender %s: %w", name, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get sender id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("failed to look up sender %s: %w", name, err)
	}

	cache[name] = id
	return id, nil
}

func insertMedia(tx *sql.Tx, senders map[string]int64, convID int64, media parser.Media) (int64, error) {
	senderID, err := getOrCreateSender(tx, senders, media.SenderName)
	if err != nil {
		return 0, err
	}

	creation := sql.NullInt64{Int64: media.CreationTimestamp, Valid: media.CreationTimestamp != 0}
	content := sql.NullString{String: media.MessageContent, Valid: media.MessageContent != ""}

	res, err := tx.Exec(`
		INSERT INTO media
			(conversation_id, sender_id, file_path, relative_uri, file_type,
			 timestamp_ms, creation_timestamp, message_content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		convID, senderID, media.FilePath, media.RelativeURI, media.FileType,
		media.TimestampMs, creation, content)
	if err != nil {
		return 0, fmt.Errorf("failed to insert media %s: %w", media.RelativeURI, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get media id: %w", err)
	}
	return id, nil
}

func insertContextMessage(tx *sql.Tx, senders map[string]int64, mediaID int64, msg parser.ContextMessage, position int) error {
	senderID, err := getOrCreateSender(tx, senders, msg.SenderName)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO context_messages (media_id, sender_id, content, timestamp_ms, position)
		VALUES (?, ?, ?, ?, ?)`,
		mediaID, senderID, msg.Content, msg.TimestampMs, position); err != nil {
		return fmt.Errorf("failed to insert context message: %w", err)
	}
	return nil
}
