package parser

import "testing"

func TestRepairPolishChars(t *testing.T) {
	// "ł" (U+0142, UTF-8 bytes C5 82) arrives as Å
	if got := Repair("Å"); got != "ł" {
		t.Fatalf("Repair=%q want %q", got, "ł")
	}
}

func TestRepairEmoji(t *testing.T) {
	// 😆 = U+1F606, UTF-8 bytes F0 9F 98 86
	mojibake := "ð"
	if got := Repair(mojibake); got != "😆" {
		t.Fatalf("Repair=%q want %q", got, "😆")
	}
}

func TestRepairMixedText(t *testing.T) {
	mojibake := "RafaÅ BrzeziÅski"
	if got := Repair(mojibake); got != "Rafał Brzeziński" {
		t.Fatalf("Repair=%q want %q", got, "Rafał Brzeziński")
	}
}

func TestRepairPlainASCIIUnchanged(t *testing.T) {
	if got := Repair("hello world"); got != "hello world" {
		t.Fatalf("Repair=%q want unchanged", got)
	}
}

func TestRepairAlreadyCorrectUnchanged(t *testing.T) {
	// Multi-byte input cannot be mojibake and must pass through.
	for _, s := range []string{"Rafał Brzeziński", "日本語", "😆", ""} {
		if got := Repair(s); got != s {
			t.Fatalf("Repair(%q)=%q want unchanged", s, got)
		}
	}
}

func TestRepairIdempotent(t *testing.T) {
	cases := []string{
		"Å",
		"RafaÅ BrzeziÅski",
		"hello world",
		"Rafał",
		"",
	}
	for _, in := range cases {
		once := Repair(in)
		twice := Repair(once)
		if twice != once {
			t.Fatalf("Repair not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
