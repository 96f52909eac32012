package reader

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

var digitRun = regexp.MustCompile(`\d+`)

// ChapterNumber extracts the first run of digits in name.
func ChapterNumber(name string) (int, bool) {
	m := digitRun.FindString(name)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

type titleEntry struct {
	Chapter json.RawMessage `json:"chapter"`
	Title   string          `json:"title"`
}

// ParseTitleIndex decodes a title index document: either an object keyed by chapter number
// ({"1": "Title"}) or an array of {"chapter": n, "title": "..."} records.
func ParseTitleIndex(data []byte) (map[int]string, error) {
	titles := make(map[int]string)

	var byKey map[string]string
	if err := json.Unmarshal(data, &byKey); err == nil {
		for k, v := range byKey {
			if n, err := strconv.Atoi(strings.TrimSpace(k)); err == nil && v != "" {
				titles[n] = v
			}
		}
		return titles, nil
	}

	var entries []titleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: title index: %v", shared.ErrMalformedContent, err)
	}
	for _, e := range entries {
		n, ok := entryNumber(e.Chapter)
		if ok && e.Title != "" {
			titles[n] = e.Title
		}
	}
	return titles, nil
}

func entryNumber(raw json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ChapterNumber(s)
	}
	return 0, false
}

// baseTitle strips the chapter extension from name.
func baseTitle(name string) string {
	if strings.EqualFold(path.Ext(name), models.ChapterExtension) {
		return strings.TrimSuffix(name, path.Ext(name))
	}
	return name
}
