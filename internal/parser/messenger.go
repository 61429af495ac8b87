package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// msgrExport is the top-level structure of a Messenger app export file.
type msgrExport struct {
	Participants []string      `json:"participants"`
	ThreadName   string        `json:"threadName"`
	Messages     []msgrMessage `json:"messages"`
}

type msgrMessage struct {
	SenderName string         `json:"senderName"`
	Timestamp  int64          `json:"timestamp"`
	Text       string         `json:"text"`
	Media      []msgrMediaRef `json:"media"`
}

type msgrMediaRef struct {
	URI string `json:"uri"`
}

// parseMessenger treats every top-level *.json file as one
// conversation. As with Facebook, broken files are skipped with a
// warning and media-less conversations are dropped.
func parseMessenger(log zerolog.Logger, root string, window int) (Result, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read export directory: %w", err)
	}

	var conversations []Conversation
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		jsonPath := filepath.Join(root, entry.Name())
		conv, err := parseMessengerConversation(log, root, jsonPath, window)
		if err != nil {
			log.Warn().Err(err).Str("conversation", jsonPath).Msg("Skipping conversation")
			continue
		}
		if len(conv.Media) > 0 {
			conversations = append(conversations, conv)
		}
	}

	return Result{Conversations: conversations}, nil
}

func parseMessengerConversation(log zerolog.Logger, root, jsonPath string, window int) (Conversation, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to read %s: %w", jsonPath, err)
	}
	var export msgrExport
	if err := json.Unmarshal(data, &export); err != nil {
		return Conversation{}, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
	}

	messages := make([]message, 0, len(export.Messages))
	for _, m := range export.Messages {
		messages = append(messages, toMessage(m))
	}

	// Messenger exports are usually already chronological, but that is
	// not guaranteed, so sort explicitly.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].TimestampMs < messages[j].TimestampMs
	})

	return Conversation{
		FolderName:   strings.TrimSuffix(filepath.Base(jsonPath), ".json"),
		Title:        cleanThreadName(export.ThreadName),
		ThreadPath:   export.ThreadName,
		ChatType:     chatType(len(export.Participants)),
		Participants: export.Participants,
		Media:        extractMedia(log, root, messages, window),
		SourceType:   FormatMessenger,
		SourcePath:   root,
	}, nil
}

// toMessage adapts a Messenger message into the shared message shape,
// classifying media by file extension. Unsupported extensions (audio,
// documents) are dropped from media extraction.
func toMessage(m msgrMessage) message {
	out := message{
		SenderName:  m.SenderName,
		TimestampMs: m.Timestamp,
		Content:     m.Text,
	}
	for _, ref := range m.Media {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(ref.URI), "."))
		switch ext {
		case "jpg", "jpeg", "png", "webp":
			out.Photos = append(out.Photos, mediaRef{URI: ref.URI})
		case "mp4":
			out.Videos = append(out.Videos, mediaRef{URI: ref.URI})
		case "gif":
			out.GIFs = append(out.GIFs, mediaRef{URI: ref.URI})
		}
	}
	return out
}

// cleanThreadName strips the trailing _<digits> suffix Messenger
// appends to exported thread names.
func cleanThreadName(name string) string {
	i := strings.LastIndex(name, "_")
	if i == -1 || i == len(name)-1 {
		return name
	}
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[:i]
}
