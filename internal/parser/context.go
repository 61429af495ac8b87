package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// extractMedia walks a chronological message list once and turns every
// surviving media reference into a Media record carrying bounded
// before/after context. References whose file is missing on disk are
// skipped individually; the context window clamps at the ends of the
// stream.
func extractMedia(log zerolog.Logger, root string, messages []message, window int) []Media {
	var items []Media

	for i := range messages {
		msg := &messages[i]
		if !msg.hasMedia() {
			continue
		}

		before := buildContext(messages, i, window, true)
		after := buildContext(messages, i, window, false)

		add := func(ref mediaRef, fileType string) {
			abs := resolveURI(root, ref.URI)
			if _, err := os.Stat(abs); err != nil {
				log.Warn().Str("path", abs).Str("type", fileType).Msg("Media file not found")
				return
			}
			items = append(items, Media{
				FilePath:          abs,
				RelativeURI:       ref.URI,
				FileType:          fileType,
				TimestampMs:       msg.TimestampMs,
				CreationTimestamp: ref.CreationTimestamp,
				SenderName:        msg.SenderName,
				MessageContent:    msg.Content,
				ContextBefore:     cloneContext(before),
				ContextAfter:      cloneContext(after),
			})
		}

		for _, ref := range msg.Photos {
			add(ref, FileTypeImage)
		}
		for _, ref := range msg.Videos {
			add(ref, FileTypeVideo)
		}
		for _, ref := range msg.GIFs {
			add(ref, FileTypeGIF)
		}
	}

	return items
}

// buildContext collects up to window messages before or after index,
// oldest-first, rendered to display text.
func buildContext(messages []message, index, window int, before bool) []ContextMessage {
	var lo, hi int
	if before {
		lo = index - window
		if lo < 0 {
			lo = 0
		}
		hi = index
	} else {
		lo = index + 1
		hi = index + 1 + window
		if hi > len(messages) {
			hi = len(messages)
		}
	}

	var context []ContextMessage
	for j := lo; j < hi; j++ {
		context = append(context, ContextMessage{
			SenderName:  messages[j].SenderName,
			Content:     displayText(&messages[j]),
			TimestampMs: messages[j].TimestampMs,
		})
	}
	return context
}

// displayText renders a context message: its content when non-empty,
// else a placeholder for whatever media it carries.
func displayText(msg *message) string {
	if msg.Content != "" {
		return msg.Content
	}
	switch {
	case len(msg.Photos) > 0:
		return "[Photo]"
	case len(msg.Videos) > 0:
		return "[Video]"
	case len(msg.GIFs) > 0:
		return "[GIF]"
	}
	return "[Message]"
}

// resolveURI resolves a declared media URI against the export root,
// handling the ./media/ prefix Messenger exports use.
func resolveURI(root, uri string) string {
	return filepath.Join(root, strings.TrimPrefix(uri, "./"))
}

// Context lists are duplicated per co-located media reference, never
// shared, so later mutation of one item cannot leak into another.
func cloneContext(context []ContextMessage) []ContextMessage {
	if context == nil {
		return nil
	}
	out := make([]ContextMessage, len(context))
	copy(out, context)
	return out
}
