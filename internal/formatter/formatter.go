// package formatter renders story history and download manifests to files (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

// Supported history export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the accepted values of the export format flag.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// DownloadManifest summarizes one story download run.
type DownloadManifest struct {
	RunID           string         `json:"runId"`
	StoryID         string         `json:"storyId"`
	StoryName       string         `json:"storyName"`
	OutputDirectory string         `json:"outputDirectory"`
	CreatedAtEpoch  int64          `json:"createdAt"`
	Total           int            `json:"total"`
	Downloaded      int            `json:"downloaded"`
	Skipped         int            `json:"skipped"`
	Failed          int            `json:"failed"`
	Files           []ManifestFile `json:"files"`
}

// ManifestFile is one file entry of a [DownloadManifest].
type ManifestFile struct {
	FileID    string `json:"fileId"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// HistoryToCSV converts the story history to CSV with columns:
// Story ID, Story, Mode, Access, Item, Total Items, Position, Paragraph, Last Accessed
func HistoryToCSV(history []models.StoryProgress) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Story ID", "Story", "Mode", "Access", "Item", "Total Items", "Position", "Paragraph", "Last Accessed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range history {
		record := []string{
			p.StoryID,
			p.StoryName,
			string(p.Mode),
			string(p.Access),
			p.CurrentItemName,
			strconv.Itoa(p.TotalItems),
			strconv.FormatFloat(p.PositionSeconds, 'f', 1, 64),
			strconv.Itoa(p.ParagraphIndex),
			strconv.FormatInt(p.LastAccessedEpochMs, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown converts the story history to a Markdown document with one section per story.
func HistoryToMarkdown(history []models.StoryProgress) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Story History\n\n")
	buf.WriteString(fmt.Sprintf("**Stories**: %d\n\n", len(history)))

	for _, p := range history {
		buf.WriteString(fmt.Sprintf("## %s\n\n", p.StoryName))
		buf.WriteString(fmt.Sprintf("- **Path**: %s\n", NavigationPath(p.Navigation)))
		buf.WriteString(fmt.Sprintf("- **Where**: %s\n", Position(p)))
		buf.WriteString(fmt.Sprintf("- **Access**: %s\n", p.Access))
		buf.WriteString(fmt.Sprintf("- **Last accessed**: %s\n\n", shared.FormatEpochMs(p.LastAccessedEpochMs)))
	}

	return buf.Bytes(), nil
}

// HistoryToText converts the story history to plain text, one numbered story per line.
func HistoryToText(history []models.StoryProgress) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Stories: %d\n\n", len(history)))
	for i, p := range history {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%s)\n", i+1, p.StoryName, Position(p), shared.FormatEpochMs(p.LastAccessedEpochMs)))
	}

	return buf.Bytes(), nil
}

// HistoryToJSON converts the story history to indented JSON.
func HistoryToJSON(history []models.StoryProgress) ([]byte, error) {
	if history == nil {
		history = []models.StoryProgress{}
	}
	return shared.MarshalJSON(history, true)
}

// Position describes where in a story p resumes, e.g. "item 3/12 at 4:05" or "chapter 2/9, paragraph 14".
func Position(p models.StoryProgress) string {
	if p.Mode == models.ModeReader {
		return fmt.Sprintf("chapter %d/%d, paragraph %d", p.CurrentIndex+1, p.TotalItems, p.ParagraphIndex+1)
	}
	return fmt.Sprintf("item %d/%d at %s", p.CurrentIndex+1, p.TotalItems, shared.FormatDuration(p.PositionSeconds))
}

// NavigationPath joins folder names from the root, e.g. "Stories / Dune / Book 1".
func NavigationPath(nav []models.FolderRef) string {
	names := make([]string, 0, len(nav))
	for _, f := range nav {
		names = append(names, f.Name)
	}
	return strings.Join(names, " / ")
}

// WriteHistoryExport renders history in format and writes it to path.
//
// Defaults to story_history.{ext} in the working directory when path is empty.
func WriteHistoryExport(history []models.StoryProgress, format, path string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case FormatCSV:
		data, err = HistoryToCSV(history)
		ext = ".csv"
	case FormatMarkdown:
		data, err = HistoryToMarkdown(history)
		ext = ".md"
	case FormatText:
		data, err = HistoryToText(history)
		ext = ".txt"
	case FormatJSON, "":
		data, err = HistoryToJSON(history)
		ext = ".json"
	default:
		return "", fmt.Errorf("%w: unknown export format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return "", fmt.Errorf("failed to render history: %w", err)
	}

	if path == "" {
		path = "story_history" + ext
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// WriteDownloadManifest writes m as indented JSON to path.
func WriteDownloadManifest(m DownloadManifest, path string) error {
	if m.Files == nil {
		m.Files = []ManifestFile{}
	}
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
