package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ImportStatus reports whether the store holds any data.
type ImportStatus struct {
	HasData           bool  `json:"has_data"`
	MediaCount        int64 `json:"media_count"`
	ConversationCount int64 `json:"conversation_count"`
}

// ConversationInfo is one row of the conversation listing.
type ConversationInfo struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ChatType   string `json:"chat_type"`
	MediaCount int64  `json:"media_count"`
}

// SenderInfo is one row of the sender listing.
type SenderInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	MediaCount int64  `json:"media_count"`
}

// MediaItem is one row of a filtered media listing.
type MediaItem struct {
	ID                int64  `json:"id"`
	FilePath          string `json:"file_path"`
	SenderName        string `json:"sender_name"`
	TimestampMs       int64  `json:"timestamp_ms"`
	ConversationTitle string `json:"conversation_title"`
	ChatType          string `json:"chat_type"`
	FileType          string `json:"file_type"`
	ConversationID    int64  `json:"conversation_id"`
	SenderID          int64  `json:"sender_id"`
}

// ContextMessage is one message surrounding a media item.
type ContextMessage struct {
	SenderName  string `json:"sender_name"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// MediaContext is a media item with its surrounding conversation.
type MediaContext struct {
	Media         MediaItem        `json:"media"`
	ContextBefore []ContextMessage `json:"context_before"`
	ContextAfter  []ContextMessage `json:"context_after"`
}

// TimelineEntry is one month bucket of the media timeline.
type TimelineEntry struct {
	Label    string `json:"label"`
	MonthKey string `json:"month_key"`
	Count    int64  `json:"count"`
}

// SourceInfo summarizes one imported export root.
type SourceInfo struct {
	SourceType    string `json:"source_type"`
	SourcePath    string `json:"source_path"`
	Conversations int64  `json:"conversations"`
	MediaCount    int64  `json:"media_count"`
}

// MediaFilters selects, orders and paginates the media listing. Zero
// values mean "no filter"; Limit defaults to 500.
type MediaFilters struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	SenderID       int64  `json:"sender_id,omitempty"`
	FileType       string `json:"file_type,omitempty"`
	Month          string `json:"month,omitempty"`
	Search         string `json:"search,omitempty"`
	Sort           string `json:"sort,omitempty"`
	Limit          int64  `json:"limit,omitempty"`
	Offset         int64  `json:"offset,omitempty"`
}

const defaultLimit = 500

// monthBucket derives the "YYYY-MM" bucket for a millisecond timestamp
// column.
const monthBucket = "strftime('%Y-%m', datetime(m.timestamp_ms / 1000, 'unixepoch'))"

// Status reports media and conversation counts.
func (s *Store) Status(ctx context.Context) (ImportStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var status ImportStatus
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media").Scan(&status.MediaCount); err != nil {
		return ImportStatus{}, fmt.Errorf("failed to count media: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&status.ConversationCount); err != nil {
		return ImportStatus{}, fmt.Errorf("failed to count conversations: %w", err)
	}
	status.HasData = status.MediaCount > 0
	return status, nil
}

// Conversations lists every conversation with its media count.
func (s *Store) Conversations(ctx context.Context) ([]ConversationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.chat_type, COUNT(m.id) AS media_count
		FROM conversations c
		LEFT JOIN media m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.title`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	result := make([]ConversationInfo, 0)
	for rows.Next() {
		var info ConversationInfo
		if err := rows.Scan(&info.ID, &info.Title, &info.ChatType, &info.MediaCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

// Senders lists every sender that owns at least one media item.
func (s *Store) Senders(ctx context.Context) ([]SenderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, COUNT(m.id) AS media_count
		FROM senders s
		INNER JOIN media m ON m.sender_id = s.id
		GROUP BY s.id
		ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query senders: %w", err)
	}
	defer rows.Close()

	result := make([]SenderInfo, 0)
	for rows.Next() {
		var info SenderInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.MediaCount); err != nil {
			return nil, fmt.Errorf("failed to scan sender: %w", err)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

const mediaSelect = `
	SELECT m.id, m.file_path, s.name, m.timestamp_ms, c.title, c.chat_type,
	       m.file_type, m.conversation_id, m.sender_id
	FROM media m
	INNER JOIN senders s ON s.id = m.sender_id
	INNER JOIN conversations c ON c.id = m.conversation_id`

// Media lists media items matching the given filters.
func (s *Store) Media(ctx context.Context, filters MediaFilters) ([]MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var preds predicates
	if filters.ConversationID != 0 {
		preds.add("m.conversation_id = ?", filters.ConversationID)
	}
	if filters.SenderID != 0 {
		preds.add("m.sender_id = ?", filters.SenderID)
	}
	if filters.FileType != "" {
		preds.add("m.file_type = ?", filters.FileType)
	}
	if filters.Month != "" {
		preds.add(monthBucket+" = ?", filters.Month)
	}
	if filters.Search != "" {
		addSearchPredicate(&preds, filters.Search)
	}

	query := mediaSelect + preds.where()

	switch filters.Sort {
	case "date-asc":
		query += " ORDER BY m.timestamp_ms ASC"
	case "sender":
		query += " ORDER BY s.name ASC, m.timestamp_ms DESC"
	default:
		query += " ORDER BY m.timestamp_ms DESC"
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	query += " LIMIT ? OFFSET ?"
	args := append(preds.args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	result := make([]MediaItem, 0)
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(&item.ID, &item.FilePath, &item.SenderName, &item.TimestampMs,
			&item.ConversationTitle, &item.ChatType, &item.FileType,
			&item.ConversationID, &item.SenderID); err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// wordMatch wraps a text column so a LIKE '% term %' comparison
// approximates word-boundary matching without a tokenizer: punctuation
// becomes spaces and both ends are padded.
func wordMatch(column string) string {
	norm := column
	for _, punct := range []string{"','", "'.'", "'!'", "'?'", `'"'`, "''''"} {
		norm = fmt.Sprintf("REPLACE(%s, %s, ' ')", norm, punct)
	}
	return fmt.Sprintf("(' ' || %s || ' ') LIKE ?", norm)
}

// addSearchPredicate matches a term as a substring of the sender name
// or conversation title, as a whole word inside the message content,
// or the same rules against any context message attached to the item.
func addSearchPredicate(preds *predicates, term string) {
	wordPattern := "% " + term + " %"
	namePattern := "%" + term + "%"

	cond := fmt.Sprintf(`(s.name LIKE ? OR c.title LIKE ? OR %s
		OR m.id IN (
			SELECT cm.media_id FROM context_messages cm
			INNER JOIN senders cs ON cs.id = cm.sender_id
			WHERE cs.name LIKE ? OR %s))`,
		wordMatch("m.message_content"), wordMatch("cm.content"))

	preds.add(cond, namePattern, namePattern, wordPattern, namePattern, wordPattern)
}

// Context returns a media item with its surrounding messages,
// partitioned into before (position < 0) and after (position >= 1).
func (s *Store) Context(ctx context.Context, mediaID int64) (MediaContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var media MediaItem
	err := s.db.QueryRowContext(ctx, mediaSelect+" WHERE m.id = ?", mediaID).Scan(
		&media.ID, &media.FilePath, &media.SenderName, &media.TimestampMs,
		&media.ConversationTitle, &media.ChatType, &media.FileType,
		&media.ConversationID, &media.SenderID)
	if err == sql.ErrNoRows {
		return MediaContext{}, ErrMediaNotFound
	}
	if err != nil {
		return MediaContext{}, fmt.Errorf("failed to query media %d: %w", mediaID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, cm.content, cm.timestamp_ms, cm.position
		FROM context_messages cm
		INNER JOIN senders s ON s.id = cm.sender_id
		WHERE cm.media_id = ?
		ORDER BY cm.position ASC`, mediaID)
	if err != nil {
		return MediaContext{}, fmt.Errorf("failed to query context: %w", err)
	}
	defer rows.Close()

	result := MediaContext{
		Media:         media,
		ContextBefore: make([]ContextMessage, 0),
		ContextAfter:  make([]ContextMessage, 0),
	}
	for rows.Next() {
		var msg ContextMessage
		var position int
		if err := rows.Scan(&msg.SenderName, &msg.Content, &msg.TimestampMs, &position); err != nil {
			return MediaContext{}, fmt.Errorf("failed to scan context row: %w", err)
		}
		if position < 0 {
			result.ContextBefore = append(result.ContextBefore, msg)
		} else {
			result.ContextAfter = append(result.ContextAfter, msg)
		}
	}
	return result, rows.Err()
}

// Timeline groups all media into month buckets, newest first.
func (s *Store) Timeline(ctx context.Context) ([]TimelineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+monthBucket+` AS month_key, COUNT(*) AS count
		FROM media m
		GROUP BY month_key
		ORDER BY month_key DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	result := make([]TimelineEntry, 0)
	for rows.Next() {
		var entry TimelineEntry
		if err := rows.Scan(&entry.MonthKey, &entry.Count); err != nil {
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		entry.Label = monthLabel(entry.MonthKey)
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Sources summarizes imported sources with conversation and media
// counts.
func (s *Store) Sources(ctx context.Context) ([]SourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.source_type, c.source_path,
		       COUNT(DISTINCT c.id) AS conversations,
		       COUNT(m.id) AS media_count
		FROM conversations c
		LEFT JOIN media m ON m.conversation_id = c.id
		GROUP BY c.source_type, c.source_path
		ORDER BY c.source_path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	result := make([]SourceInfo, 0)
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.SourceType, &info.SourcePath, &info.Conversations, &info.MediaCount); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

var monthNames = map[string]string{
	"01": "Jan", "02": "Feb", "03": "Mar", "04": "Apr",
	"05": "May", "06": "Jun", "07": "Jul", "08": "Aug",
	"09": "Sep", "10": "Oct", "11": "Nov", "12": "Dec",
}

// monthLabel renders "2024-03" as "Mar 2024". Malformed keys pass
// through unchanged.
func monthLabel(monthKey string) string {
	if len(monthKey) != 7 || monthKey[4] != '-' {
		return monthKey
	}
	name, ok := monthNames[monthKey[5:]]
	if !ok {
		return monthKey
	}
	return name + " " + monthKey[:4]
}
