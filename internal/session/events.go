package session

import (
	"fmt"

	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/models"
)

// EventKind classifies an [Event].
type EventKind int

const (
	EventListing EventKind = iota
	EventLoading
	EventTrack
	EventPlayback
	EventEnded
	EventChapter
	EventParagraph
	EventNarration
	EventAuth
	EventRestored
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventListing:
		return "listing"
	case EventLoading:
		return "loading"
	case EventTrack:
		return "track"
	case EventPlayback:
		return "playback"
	case EventEnded:
		return "ended"
	case EventChapter:
		return "chapter"
	case EventParagraph:
		return "paragraph"
	case EventNarration:
		return "narration"
	case EventAuth:
		return "auth"
	case EventRestored:
		return "restored"
	case EventError:
		return "error"
	default:
		return ""
	}
}

// Event reports a state change or failure to the front end.
type Event struct {
	Kind    EventKind
	Message string // human-readable message for display
	Err     error
	Data    any // optional kind-specific payload
}

func listingEvent(l Listing) Event {
	return Event{
		Kind:    EventListing,
		Message: fmt.Sprintf("%s: %d folders, %d audio, %d text", l.Folder.Name, len(l.Folders), len(l.Audio), len(l.Texts)),
		Data:    l,
	}
}

func loadingEvent(folder string, count int) Event {
	return Event{Kind: EventLoading, Message: fmt.Sprintf("Loading %s... %d items", folder, count), Data: count}
}

func trackEvent(index, total int, title string) Event {
	return Event{Kind: EventTrack, Message: fmt.Sprintf("[%d/%d] %s", index+1, total, title)}
}

func playbackEvent(message string) Event {
	return Event{Kind: EventPlayback, Message: message}
}

func endedEvent(name string) Event {
	return Event{Kind: EventEnded, Message: fmt.Sprintf("Finished %s", name)}
}

func chapterEvent(index, total int, title string, malformed bool) Event {
	msg := fmt.Sprintf("[%d/%d] %s", index+1, total, title)
	if malformed {
		msg += " (empty chapter)"
	}
	return Event{Kind: EventChapter, Message: msg}
}

func paragraphEvent(chapter, paragraph int) Event {
	return Event{Kind: EventParagraph, Message: fmt.Sprintf("Chapter %d, paragraph %d", chapter+1, paragraph+1)}
}

func narrationEvent(active bool) Event {
	if active {
		return Event{Kind: EventNarration, Message: "Narrating", Data: true}
	}
	return Event{Kind: EventNarration, Message: "Narration stopped", Data: false}
}

func authEvent(change auth.StateChange) Event {
	return Event{Kind: EventAuth, Message: fmt.Sprintf("%s -> %s", change.From, change.To), Err: change.Err, Data: change.To}
}

func restoredEvent(p models.StoryProgress) Event {
	return Event{Kind: EventRestored, Message: fmt.Sprintf("Resumed %s at %s", p.StoryName, p.CurrentItemName), Data: p}
}

func errorEvent(action string, err error) Event {
	return Event{Kind: EventError, Message: fmt.Sprintf("%s: %v", action, err), Err: err}
}
