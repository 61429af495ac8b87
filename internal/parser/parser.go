// Package parser turns raw chat export directories into normalized
// conversations with media items and surrounding message context. It
// never touches the store: everything here is file I/O and JSON
// decoding, done before any database lock is taken.
package parser

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Chat types derived from participant count.
const (
	ChatTypeGroup = "group"
	ChatTypeDM    = "dm"
)

// Media file types stored in the media table.
const (
	FileTypeImage = "image"
	FileTypeVideo = "video"
	FileTypeGIF   = "gif"
)

// ContextMessage is one message captured before or after a media item.
type ContextMessage struct {
	SenderName  string `json:"sender_name"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Media is a single parsed media reference ready for insertion.
type Media struct {
	FilePath    string
	RelativeURI string
	FileType    string
	TimestampMs int64
	// CreationTimestamp is the export's creation_timestamp in unix
	// seconds; 0 when the export did not carry one (always for gifs).
	CreationTimestamp int64
	SenderName        string
	MessageContent    string
	ContextBefore     []ContextMessage
	ContextAfter      []ContextMessage
}

// Conversation is a parsed conversation with all its media items.
type Conversation struct {
	FolderName   string
	Title        string
	ThreadPath   string
	ChatType     string
	Participants []string
	Media        []Media
	SourceType   Format
	SourcePath   string
}

// Result is the output of parsing one export root.
type Result struct {
	Conversations []Conversation
}

// message is the normalized in-memory message shape shared by both
// parser variants. Messenger messages are adapted into it so media and
// context extraction only exist once.
type message struct {
	SenderName  string
	TimestampMs int64
	Content     string
	Photos      []mediaRef
	Videos      []mediaRef
	GIFs        []mediaRef
}

type mediaRef struct {
	URI               string
	CreationTimestamp int64
}

func (m *message) hasMedia() bool {
	return len(m.Photos) > 0 || len(m.Videos) > 0 || len(m.GIFs) > 0
}

// ParseExport parses the export at root, auto-detecting the format.
// window is the maximum number of context messages captured on each
// side of a media message.
func ParseExport(log zerolog.Logger, root string, window int) (Result, error) {
	if _, err := os.Stat(root); err != nil {
		return Result{}, fmt.Errorf("export path does not exist: %s", root)
	}
	format, err := Detect(root)
	if err != nil {
		return Result{}, err
	}
	switch format {
	case FormatFacebook:
		return parseFacebook(log, root, window)
	default:
		return parseMessenger(log, root, window)
	}
}

func chatType(participantCount int) string {
	if participantCount <= 2 {
		return ChatTypeDM
	}
	return ChatTypeGroup
}
