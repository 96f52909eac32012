package models

import (
	"path"
	"strings"
	"time"
)

// FolderMimeType is the mime type the remote store assigns to folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// ChapterExtension marks structured text chapters.
const ChapterExtension = ".json"

// AudioExtensions lists the file suffixes treated as audio when the mime type is missing or generic.
var AudioExtensions = []string{".mp3", ".m4a", ".m4b", ".aac", ".ogg", ".opus", ".flac", ".wav"}

// FolderRef identifies a folder on the navigation path.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EntryKind classifies a remote entry.
type EntryKind int

const (
	KindOther EntryKind = iota
	KindFolder
	KindAudio
	KindText
)

func (k EntryKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return "other"
	}
}

// RemoteEntry is one child of a listed folder.
type RemoteEntry struct {
	ID        string
	Name      string
	MimeType  string
	Kind      EntryKind
	SizeBytes int64 // zero when the store did not report a size
}

// Ref returns the entry as a [FolderRef].
func (e RemoteEntry) Ref() FolderRef {
	return FolderRef{ID: e.ID, Name: e.Name}
}

// IsFolder reports whether the entry can be navigated into.
func (e RemoteEntry) IsFolder() bool { return e.Kind == KindFolder }

// Classify derives the [EntryKind] of an entry from its mime type and name.
func Classify(name, mimeType string) EntryKind {
	switch {
	case mimeType == FolderMimeType:
		return KindFolder
	case strings.HasPrefix(mimeType, "audio/"), hasAudioExtension(name):
		return KindAudio
	case strings.EqualFold(path.Ext(name), ChapterExtension):
		return KindText
	default:
		return KindOther
	}
}

// NewRemoteEntry builds a classified entry.
func NewRemoteEntry(id, name, mimeType string, size int64) RemoteEntry {
	return RemoteEntry{
		ID:        id,
		Name:      name,
		MimeType:  mimeType,
		Kind:      Classify(name, mimeType),
		SizeBytes: size,
	}
}

// DisplayName strips a known audio extension from name.
func DisplayName(name string) string {
	ext := path.Ext(name)
	for _, a := range AudioExtensions {
		if strings.EqualFold(ext, a) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

func hasAudioExtension(name string) bool {
	ext := path.Ext(name)
	for _, a := range AudioExtensions {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

// Folders returns the folder entries of entries, preserving order.
func Folders(entries []RemoteEntry) []RemoteEntry {
	return filterKind(entries, KindFolder)
}

// Audio returns the playable audio entries of entries, preserving order.
func Audio(entries []RemoteEntry) []RemoteEntry {
	return filterKind(entries, KindAudio)
}

// Texts returns the structured text entries of entries, preserving order.
func Texts(entries []RemoteEntry) []RemoteEntry {
	return filterKind(entries, KindText)
}

func filterKind(entries []RemoteEntry, kind EntryKind) []RemoteEntry {
	out := make([]RemoteEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Mode names the engine that owns the playback surface.
type Mode string

const (
	ModeAudio  Mode = "audio"
	ModeReader Mode = "reader"
)

// Access names how a story was opened.
type Access string

const (
	AccessAuthenticated Access = "authenticated"
	AccessPublic        Access = "public"
)

// StoryProgress is the persisted, resumable position within one story.
//
// StoryID is the ID of the folder holding the playable items.
type StoryProgress struct {
	StoryID             string      `json:"storyId"`
	StoryName           string      `json:"storyName"`
	Navigation          []FolderRef `json:"navigation"`
	CurrentIndex        int         `json:"currentIndex"`
	PositionSeconds     float64     `json:"positionSeconds"`
	ParagraphIndex      int         `json:"paragraphIndex"`
	TotalItems          int         `json:"totalItems"`
	CurrentItemName     string      `json:"currentItemName"`
	LastAccessedEpochMs int64       `json:"lastAccessedEpochMs"`
	Mode                Mode        `json:"mode"`
	Access              Access      `json:"access"`
}

// Valid reports whether p carries enough data to be restored.
func (p *StoryProgress) Valid() bool {
	return p != nil && p.StoryID != "" && len(p.Navigation) > 0 && p.CurrentIndex >= 0
}

// UserProfile is the cached account profile shown next to the library.
type UserProfile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Download is one file of a story copied to local disk.
type Download struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	StoryID   string    `json:"storyId"`
	FileID    string    `json:"fileId"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}
