package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// fbExport is the top-level structure of one message_<n>.json shard.
type fbExport struct {
	Participants []fbParticipant `json:"participants"`
	Messages     []fbMessage     `json:"messages"`
	Title        string          `json:"title"`
	ThreadPath   string          `json:"thread_path"`
}

type fbParticipant struct {
	Name string `json:"name"`
}

type fbMessage struct {
	SenderName  string      `json:"sender_name"`
	TimestampMs int64       `json:"timestamp_ms"`
	Content     string      `json:"content"`
	Photos      []fbMedia   `json:"photos"`
	Videos      []fbMedia   `json:"videos"`
	GIFs        []fbGifRef  `json:"gifs"`
}

type fbMedia struct {
	URI               string `json:"uri"`
	CreationTimestamp int64  `json:"creation_timestamp"`
}

type fbGifRef struct {
	URI string `json:"uri"`
}

// parseFacebook walks every conversation directory under the inbox. A
// broken conversation is logged and skipped; its siblings still parse.
// Conversations that yield no media are dropped entirely.
func parseFacebook(log zerolog.Logger, root string, window int) (Result, error) {
	inbox := facebookInboxDir(root)
	entries, err := os.ReadDir(inbox)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read inbox directory: %w", err)
	}

	var conversations []Conversation
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		convDir := filepath.Join(inbox, entry.Name())
		conv, err := parseFacebookConversation(log, root, convDir, window)
		if err != nil {
			log.Warn().Err(err).Str("conversation", convDir).Msg("Skipping conversation")
			continue
		}
		if len(conv.Media) > 0 {
			conversations = append(conversations, conv)
		}
	}

	return Result{Conversations: conversations}, nil
}

func parseFacebookConversation(log zerolog.Logger, root, convDir string, window int) (Conversation, error) {
	shards, err := filepath.Glob(filepath.Join(convDir, "message_*.json"))
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to list %s: %w", convDir, err)
	}
	if len(shards) == 0 {
		return Conversation{}, fmt.Errorf("no message JSON files found in %s", convDir)
	}
	sort.Strings(shards)

	// Shards hold messages newest-first and files are newest-chunk-first,
	// so concatenating in filename order then reversing the whole list
	// yields oldest-to-newest.
	var all []fbMessage
	var title, threadPath string
	var participants []string
	for _, shard := range shards {
		data, err := os.ReadFile(shard)
		if err != nil {
			return Conversation{}, fmt.Errorf("failed to read %s: %w", shard, err)
		}
		var export fbExport
		if err := json.Unmarshal(data, &export); err != nil {
			return Conversation{}, fmt.Errorf("failed to parse %s: %w", shard, err)
		}

		if title == "" {
			title = Repair(export.Title)
			threadPath = export.ThreadPath
			participants = make([]string, 0, len(export.Participants))
			for _, p := range export.Participants {
				participants = append(participants, Repair(p.Name))
			}
		}

		all = append(all, export.Messages...)
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	messages := make([]message, 0, len(all))
	for _, m := range all {
		messages = append(messages, message{
			SenderName:  Repair(m.SenderName),
			TimestampMs: m.TimestampMs,
			Content:     Repair(m.Content),
			Photos:      toMediaRefs(m.Photos),
			Videos:      toMediaRefs(m.Videos),
			GIFs:        gifRefs(m.GIFs),
		})
	}

	return Conversation{
		FolderName:   filepath.Base(convDir),
		Title:        title,
		ThreadPath:   threadPath,
		ChatType:     chatType(len(participants)),
		Participants: participants,
		Media:        extractMedia(log, root, messages, window),
		SourceType:   FormatFacebook,
		SourcePath:   root,
	}, nil
}

func toMediaRefs(refs []fbMedia) []mediaRef {
	if len(refs) == 0 {
		return nil
	}
	out := make([]mediaRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, mediaRef{URI: r.URI, CreationTimestamp: r.CreationTimestamp})
	}
	return out
}

func gifRefs(refs []fbGifRef) []mediaRef {
	if len(refs) == 0 {
		return nil
	}
	out := make([]mediaRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, mediaRef{URI: r.URI})
	}
	return out
}
