package models

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mime     string
		want     EntryKind
	}{
		{"folder mime", "Book", FolderMimeType, KindFolder},
		{"audio mime", "track", "audio/mpeg", KindAudio},
		{"mp3 with generic mime", "01.MP3", "application/octet-stream", KindAudio},
		{"m4b", "book.m4b", "", KindAudio},
		{"json chapter", "chapter-1.json", "application/json", KindText},
		{"uppercase json", "CH2.JSON", "", KindText},
		{"other", "cover.jpg", "image/jpeg", KindOther},
		{"folder named like audio", "x.mp3", FolderMimeType, KindFolder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.filename, tt.mime); got != tt.want {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.filename, tt.mime, got, tt.want)
			}
		})
	}
}

func TestFilters(t *testing.T) {
	entries := []RemoteEntry{
		NewRemoteEntry("f", "Story", FolderMimeType, 0),
		NewRemoteEntry("a", "01.mp3", "audio/mpeg", 1024),
		NewRemoteEntry("t", "1.json", "application/json", 10),
		NewRemoteEntry("o", "notes.txt", "text/plain", 5),
	}

	if got := Folders(entries); len(got) != 1 || got[0].ID != "f" {
		t.Errorf("expected one folder, got %v", got)
	}
	if got := Audio(entries); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("expected one audio entry, got %v", got)
	}
	if got := Texts(entries); len(got) != 1 || got[0].ID != "t" {
		t.Errorf("expected one text entry, got %v", got)
	}
	if !entries[0].IsFolder() || entries[1].IsFolder() {
		t.Error("IsFolder mismatch")
	}
	if ref := entries[0].Ref(); ref.ID != "f" || ref.Name != "Story" {
		t.Errorf("unexpected ref %v", ref)
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"01 - Intro.mp3": "01 - Intro",
		"Part 2.M4A":     "Part 2",
		"chapter.json":   "chapter.json",
		"noext":          "noext",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStoryProgressValid(t *testing.T) {
	var nilProgress *StoryProgress
	if nilProgress.Valid() {
		t.Error("nil progress should be invalid")
	}

	p := &StoryProgress{StoryID: "s1"}
	if p.Valid() {
		t.Error("progress without navigation should be invalid")
	}

	p.Navigation = []FolderRef{{ID: "root", Name: "Root"}}
	if !p.Valid() {
		t.Error("expected progress to be valid")
	}
}
