package store

import (
	"context"
	"errors"
	"testing"
)

// Millisecond timestamps inside known months.
const (
	tsMar2024 = int64(1710460800000) // 2024-03-15
	tsApr2024 = int64(1712016000000) // 2024-04-02
)

// seedQueryStore imports three conversations. "cat" appears as a whole
// word in the Pets photo content and in one Neighbors context message,
// and only as a fragment of "concatenate" in the Work photo content.
func seedQueryStore(t *testing.T) *Store {
	t.Helper()
	st := newTestStore(t)
	root := t.TempDir()
	writeFacebookFixture(t, root,
		fixtureConv{
			folder:       "pets_1",
			title:        "Pets",
			participants: []string{"Alice", "Bob"},
			messages: []map[string]any{
				textMsg("Alice", tsMar2024-100000, "good morning"),
				photoMsg("Alice", tsMar2024, "I have a cat.", photoURI("pets_1", "p.jpg")),
				textMsg("Bob", tsMar2024+100000, "so cute"),
			},
		},
		fixtureConv{
			folder:       "work_1",
			title:        "Work",
			participants: []string{"Dana", "Erin"},
			messages: []map[string]any{
				photoMsg("Dana", tsApr2024, "Please concatenate the files", photoURI("work_1", "p.jpg")),
			},
		},
		fixtureConv{
			folder:       "nbr_1",
			title:        "Neighbors",
			participants: []string{"Frank", "Gina"},
			messages: []map[string]any{
				textMsg("Frank", tsApr2024+84000000, "watch the cat go"),
				photoMsg("Gina", tsApr2024+84600000, "street view", photoURI("nbr_1", "p.jpg")),
			},
		},
	)
	if _, err := st.AddSource(context.Background(), root, 3); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	return st
}

func titles(items []MediaItem) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		result = append(result, item.ConversationTitle)
	}
	return result
}

func TestSearchWholeWord(t *testing.T) {
	st := seedQueryStore(t)

	tests := []struct {
		name   string
		search string
		want   []string // conversation titles, default date-desc order
	}{
		{"content and context word", "cat", []string{"Neighbors", "Pets"}},
		{"no substring match inside words", "oncatenat", nil},
		{"full word in content", "concatenate", []string{"Work"}},
		{"word adjacent to punctuation", "files", []string{"Work"}},
		{"sender name substring", "Ali", []string{"Pets"}},
		{"context sender name", "Frank", []string{"Neighbors"}},
		{"title substring", "Wor", []string{"Work"}},
		{"no match", "zebra", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := st.Media(context.Background(), MediaFilters{Search: tt.search})
			if err != nil {
				t.Fatalf("Media: %v", err)
			}
			got := titles(items)
			if len(got) != len(tt.want) {
				t.Fatalf("search %q: got %v want %v", tt.search, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("search %q: got %v want %v", tt.search, got, tt.want)
				}
			}
		})
	}
}

func TestMediaFiltersAndSort(t *testing.T) {
	st := seedQueryStore(t)
	ctx := context.Background()

	all, err := st.Media(ctx, MediaFilters{})
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if got := titles(all); len(got) != 3 || got[0] != "Neighbors" || got[1] != "Work" || got[2] != "Pets" {
		t.Fatalf("default order=%v want newest first", got)
	}

	asc, err := st.Media(ctx, MediaFilters{Sort: "date-asc"})
	if err != nil {
		t.Fatalf("Media date-asc: %v", err)
	}
	if got := titles(asc); got[0] != "Pets" || got[2] != "Neighbors" {
		t.Fatalf("date-asc order=%v", got)
	}

	bySender, err := st.Media(ctx, MediaFilters{Sort: "sender"})
	if err != nil {
		t.Fatalf("Media sender sort: %v", err)
	}
	if bySender[0].SenderName != "Alice" || bySender[1].SenderName != "Dana" || bySender[2].SenderName != "Gina" {
		t.Fatalf("sender order=%v", bySender)
	}

	march, err := st.Media(ctx, MediaFilters{Month: "2024-03"})
	if err != nil {
		t.Fatalf("Media month: %v", err)
	}
	if len(march) != 1 || march[0].ConversationTitle != "Pets" {
		t.Fatalf("month filter=%v", titles(march))
	}

	byConv, err := st.Media(ctx, MediaFilters{ConversationID: all[0].ConversationID})
	if err != nil {
		t.Fatalf("Media conversation: %v", err)
	}
	if len(byConv) != 1 || byConv[0].ID != all[0].ID {
		t.Fatalf("conversation filter=%v", byConv)
	}

	bySenderID, err := st.Media(ctx, MediaFilters{SenderID: all[1].SenderID})
	if err != nil {
		t.Fatalf("Media sender id: %v", err)
	}
	if len(bySenderID) != 1 || bySenderID[0].SenderName != "Dana" {
		t.Fatalf("sender filter=%v", bySenderID)
	}

	images, err := st.Media(ctx, MediaFilters{FileType: "image"})
	if err != nil {
		t.Fatalf("Media file type: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("image filter=%d want 3", len(images))
	}
	videos, err := st.Media(ctx, MediaFilters{FileType: "video"})
	if err != nil {
		t.Fatalf("Media file type: %v", err)
	}
	if len(videos) != 0 {
		t.Fatalf("video filter=%d want 0", len(videos))
	}
}

func TestMediaPagination(t *testing.T) {
	st := seedQueryStore(t)
	ctx := context.Background()

	page, err := st.Media(ctx, MediaFilters{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if len(page) != 1 || page[0].ConversationTitle != "Work" {
		t.Fatalf("page=%v want the second newest item", titles(page))
	}

	past, err := st.Media(ctx, MediaFilters{Limit: 10, Offset: 10})
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("offset past end returned %d items", len(past))
	}
}

func TestContextNotFound(t *testing.T) {
	st := seedQueryStore(t)
	if _, err := st.Context(context.Background(), 999999); !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("err=%v want ErrMediaNotFound", err)
	}
}

func TestSendersListing(t *testing.T) {
	st := seedQueryStore(t)
	senders, err := st.Senders(context.Background())
	if err != nil {
		t.Fatalf("Senders: %v", err)
	}
	// Only media owners appear, not context-only senders like Frank.
	want := []string{"Alice", "Dana", "Gina"}
	if len(senders) != len(want) {
		t.Fatalf("senders=%+v want %v", senders, want)
	}
	for i, sender := range senders {
		if sender.Name != want[i] || sender.MediaCount != 1 {
			t.Fatalf("senders=%+v want %v with one item each", senders, want)
		}
	}
}

func TestTimeline(t *testing.T) {
	st := seedQueryStore(t)
	timeline, err := st.Timeline(context.Background())
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("timeline=%+v want two buckets", timeline)
	}
	if timeline[0].MonthKey != "2024-04" || timeline[0].Count != 2 || timeline[0].Label != "Apr 2024" {
		t.Fatalf("first bucket=%+v", timeline[0])
	}
	if timeline[1].MonthKey != "2024-03" || timeline[1].Count != 1 || timeline[1].Label != "Mar 2024" {
		t.Fatalf("second bucket=%+v", timeline[1])
	}
}

func TestMonthLabel(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"2024-03", "Mar 2024"},
		{"1999-12", "Dec 1999"},
		{"2024-13", "2024-13"},
		{"2024/03", "2024/03"},
		{"garbage", "garbage"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := monthLabel(tt.key); got != tt.want {
			t.Errorf("monthLabel(%q)=%q want %q", tt.key, got, tt.want)
		}
	}
}

func TestStatusEmptyStore(t *testing.T) {
	st := newTestStore(t)
	status, err := st.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.HasData || status.MediaCount != 0 || status.ConversationCount != 0 {
		t.Fatalf("status=%+v want empty", status)
	}
}
