package reader

import (
	"encoding/json"
	"strings"
)

// ContentKind tags the variant of a parsed chapter document.
type ContentKind int

const (
	// Paragraphs came from a "content" array of strings.
	Paragraphs ContentKind = iota
	// Text came from a "content" or "text" string split on newlines.
	Text
	// Empty is any document without usable content.
	Empty
)

func (k ContentKind) String() string {
	switch k {
	case Paragraphs:
		return "paragraphs"
	case Text:
		return "text"
	default:
		return "empty"
	}
}

// Content is a parsed chapter document.
type Content struct {
	Kind       ContentKind
	Title      string
	Paragraphs []string
}

// Len is the number of paragraphs.
func (c Content) Len() int { return len(c.Paragraphs) }

// Malformed reports whether the document had no usable content.
func (c Content) Malformed() bool { return c.Kind == Empty }

type document struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
	Text    json.RawMessage `json:"text"`
}

// ParseContent decodes a chapter document. It never fails; unusable input yields [Empty].
func ParseContent(data []byte) Content {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Content{Kind: Empty}
	}

	if len(doc.Content) > 0 {
		var items []string
		if err := json.Unmarshal(doc.Content, &items); err == nil {
			return Content{Kind: Paragraphs, Title: doc.Title, Paragraphs: clean(items)}
		}

		var body string
		if err := json.Unmarshal(doc.Content, &body); err == nil {
			return Content{Kind: Text, Title: doc.Title, Paragraphs: splitLines(body)}
		}
	}

	if len(doc.Text) > 0 {
		var body string
		if err := json.Unmarshal(doc.Text, &body); err == nil {
			return Content{Kind: Text, Title: doc.Title, Paragraphs: splitLines(body)}
		}
	}

	return Content{Kind: Empty, Title: doc.Title}
}

func splitLines(body string) []string {
	return clean(strings.Split(body, "\n"))
}

func clean(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
