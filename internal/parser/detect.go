package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Format is a recognized export layout.
type Format string

const (
	// FormatFacebook is a facebook.com "Download Your Information"
	// export: conversations live under your_facebook_activity/messages/inbox.
	FormatFacebook Format = "facebook"
	// FormatMessenger is a Messenger app export: one JSON file per
	// conversation at the root, next to a media/ directory.
	FormatMessenger Format = "messenger"
)

// ErrUnrecognizedFormat is returned when a directory matches neither
// known export layout.
var ErrUnrecognizedFormat = errors.New("unrecognized export format, expected Facebook or Messenger data")

func facebookInboxDir(root string) string {
	return filepath.Join(root, "your_facebook_activity", "messages", "inbox")
}

// Detect classifies the directory at root as one of the known export
// layouts. Facebook wins when both layouts would match.
func Detect(root string) (Format, error) {
	if info, err := os.Stat(facebookInboxDir(root)); err == nil && info.IsDir() {
		return FormatFacebook, nil
	}

	if info, err := os.Stat(filepath.Join(root, "media")); err == nil && info.IsDir() {
		entries, err := os.ReadDir(root)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
					return FormatMessenger, nil
				}
			}
		}
	}

	return "", ErrUnrecognizedFormat
}
