package parser

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMessengerExport(t *testing.T, root string) {
	t.Helper()
	if err := os.Mkdir(filepath.Join(root, "media"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"pic.png", "clip.mp4", "anim.gif", "voice.ogg"} {
		writeMediaFile(t, root, filepath.Join("media", name))
	}

	// Deliberately out of order: the parser must sort by timestamp.
	writeJSONFile(t, filepath.Join(root, "chat_Alice_12345.json"), map[string]any{
		"participants": []string{"Alice", "Bob"},
		"threadName":   "Alice_12345",
		"messages": []map[string]any{
			{"senderName": "Bob", "timestamp": int64(3000), "text": "", "media": []map[string]string{{"uri": "./media/clip.mp4"}}},
			{"senderName": "Alice", "timestamp": int64(1000), "text": "hi", "media": []map[string]string{
				{"uri": "./media/pic.png"},
				{"uri": "./media/voice.ogg"},
			}},
			{"senderName": "Alice", "timestamp": int64(2000), "text": "", "media": []map[string]string{{"uri": "./media/anim.gif"}}},
		},
	})
}

func TestParseMessengerExport(t *testing.T) {
	root := t.TempDir()
	writeMessengerExport(t, root)

	result, err := ParseExport(testLogger(), root, 5)
	if err != nil {
		t.Fatalf("ParseExport: %v", err)
	}
	if len(result.Conversations) != 1 {
		t.Fatalf("got %d conversations, want 1", len(result.Conversations))
	}

	conv := result.Conversations[0]
	if conv.Title != "Alice" {
		t.Errorf("title=%q want %q (suffix stripped)", conv.Title, "Alice")
	}
	if conv.ThreadPath != "Alice_12345" {
		t.Errorf("thread_path=%q", conv.ThreadPath)
	}
	if conv.ChatType != ChatTypeDM {
		t.Errorf("chat_type=%q want dm", conv.ChatType)
	}
	if conv.FolderName != "chat_Alice_12345" {
		t.Errorf("folder_name=%q", conv.FolderName)
	}
	if conv.SourceType != FormatMessenger {
		t.Errorf("source_type=%q", conv.SourceType)
	}

	// The .ogg reference is dropped; png, gif and mp4 survive in
	// chronological order.
	if len(conv.Media) != 3 {
		t.Fatalf("got %d media, want 3", len(conv.Media))
	}
	wantTypes := []string{FileTypeImage, FileTypeGIF, FileTypeVideo}
	wantTs := []int64{1000, 2000, 3000}
	for i, media := range conv.Media {
		if media.FileType != wantTypes[i] || media.TimestampMs != wantTs[i] {
			t.Errorf("media[%d]=%s@%d want %s@%d", i, media.FileType, media.TimestampMs, wantTypes[i], wantTs[i])
		}
	}
}

func TestCleanThreadName(t *testing.T) {
	cases := map[string]string{
		"Alice_12345":     "Alice",
		"Group Chat_9":    "Group Chat",
		"No Suffix":       "No Suffix",
		"Trailing_":       "Trailing_",
		"Not_digits_x1":   "Not_digits_x1",
		"Multi_Part_2024": "Multi_Part",
		"":                "",
	}
	for in, want := range cases {
		if got := cleanThreadName(in); got != want {
			t.Errorf("cleanThreadName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestParseMessengerSkipsBrokenFile(t *testing.T) {
	root := t.TempDir()
	writeMessengerExport(t, root)
	if err := os.WriteFile(filepath.Join(root, "broken.json"), []byte("???"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := ParseExport(testLogger(), root, 5)
	if err != nil {
		t.Fatalf("ParseExport: %v", err)
	}
	if len(result.Conversations) != 1 {
		t.Fatalf("got %d conversations, want 1", len(result.Conversations))
	}
}
