package ui

import (
	"strings"
	"testing"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/session"
)

func TestListingItems(t *testing.T) {
	l := session.Listing{
		Folders: []models.RemoteEntry{models.NewRemoteEntry("f1", "Book 1", models.FolderMimeType, 0)},
		Audio: []models.RemoteEntry{
			models.NewRemoteEntry("a1", "01 - Intro.mp3", "audio/mpeg", 2048),
			models.NewRemoteEntry("a2", "02 - Storm.mp3", "audio/mpeg", 0),
		},
		Texts: []models.RemoteEntry{models.NewRemoteEntry("t1", "chapter1.json", "application/json", 10)},
	}

	items := listingItems(l)
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}

	tests := []struct {
		title string
		desc  string
		index int
	}{
		{"Book 1/", "folder", 0},
		{"01 - Intro", "audio • 2.0 KB", 0},
		{"02 - Storm", "audio", 1},
		{"chapter1.json", "chapter", 0},
	}
	for i, tt := range tests {
		item := items[i].(entryItem)
		if item.Title() != tt.title {
			t.Errorf("item %d: expected title %q, got %q", i, tt.title, item.Title())
		}
		if item.Description() != tt.desc {
			t.Errorf("item %d: expected description %q, got %q", i, tt.desc, item.Description())
		}
		if item.index != tt.index {
			t.Errorf("item %d: expected kind index %d, got %d", i, tt.index, item.index)
		}
	}
}

func TestHistoryItem(t *testing.T) {
	item := historyItem{progress: models.StoryProgress{
		StoryID:         "s",
		StoryName:       "Dune",
		CurrentIndex:    1,
		TotalItems:      4,
		PositionSeconds: 61,
		Mode:            models.ModeAudio,
		Access:          models.AccessPublic,
	}}

	if item.Title() != "Dune" || item.FilterValue() != "Dune" {
		t.Errorf("unexpected title %q", item.Title())
	}
	desc := item.Description()
	if !strings.HasPrefix(desc, "item 2/4 at 1:01 • public") {
		t.Errorf("unexpected description %q", desc)
	}
	if !strings.HasSuffix(desc, "• -") {
		t.Errorf("expected unset access time marker, got %q", desc)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		pos, dur float64
		width    int
		filled   int
	}{
		{"unknown duration", 30, 0, 10, 0},
		{"half", 50, 100, 10, 5},
		{"overflow clamps", 150, 100, 10, 10},
		{"negative clamps", -5, 100, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := progressBar(tt.pos, tt.dur, tt.width)
			if got := strings.Count(bar, "━"); got != tt.filled {
				t.Errorf("expected %d filled cells, got %d (%q)", tt.filled, got, bar)
			}
			if got := strings.Count(bar, "━") + strings.Count(bar, "─"); got != tt.width {
				t.Errorf("expected width %d, got %d", tt.width, got)
			}
		})
	}

	if progressBar(1, 2, 0) != "" {
		t.Error("zero width should render empty")
	}
}
