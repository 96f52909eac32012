package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/drivecast/internal/formatter"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/session"
	"github.com/desertthunder/drivecast/internal/shared"
)

var (
	_ list.Item = entryItem{}
	_ list.Item = historyItem{}
)

// entryItem wraps [models.RemoteEntry] to implement [list.Item].
//
// index is the position of the entry within its kind, which is what the session's play and read actions take.
type entryItem struct {
	entry models.RemoteEntry
	index int
}

func (i entryItem) FilterValue() string { return i.entry.Name }
func (i entryItem) Title() string {
	switch i.entry.Kind {
	case models.KindFolder:
		return i.entry.Name + "/"
	case models.KindAudio:
		return models.DisplayName(i.entry.Name)
	default:
		return i.entry.Name
	}
}
func (i entryItem) Description() string {
	switch i.entry.Kind {
	case models.KindFolder:
		return "folder"
	case models.KindAudio:
		if i.entry.SizeBytes > 0 {
			return fmt.Sprintf("audio • %s", shared.FormatSize(i.entry.SizeBytes))
		}
		return "audio"
	default:
		return "chapter"
	}
}

// listingItems orders a listing as folders, then audio, then text chapters.
func listingItems(l session.Listing) []list.Item {
	items := make([]list.Item, 0, len(l.Folders)+len(l.Audio)+len(l.Texts))
	for i, e := range l.Folders {
		items = append(items, entryItem{entry: e, index: i})
	}
	for i, e := range l.Audio {
		items = append(items, entryItem{entry: e, index: i})
	}
	for i, e := range l.Texts {
		items = append(items, entryItem{entry: e, index: i})
	}
	return items
}

// historyItem wraps [models.StoryProgress] to implement [list.Item].
type historyItem struct {
	progress models.StoryProgress
}

func (i historyItem) FilterValue() string { return i.progress.StoryName }
func (i historyItem) Title() string       { return i.progress.StoryName }
func (i historyItem) Description() string {
	desc := formatter.Position(i.progress)
	if i.progress.Access == models.AccessPublic {
		desc += " • public"
	}
	return fmt.Sprintf("%s • %s", desc, shared.FormatEpochMs(i.progress.LastAccessedEpochMs))
}

func historyItems(history []models.StoryProgress) []list.Item {
	items := make([]list.Item, len(history))
	for i, p := range history {
		items[i] = historyItem{progress: p}
	}
	return items
}
