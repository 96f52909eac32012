package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, a [FileResult] while downloading
}

// Operation phase enumeration
type Phase int

const (
	ListStory Phase = iota
	DownloadFiles
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case ListStory:
		return "list_story"
	case DownloadFiles:
		return "download_files"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func listingStoryUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListStory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Listing story (%s)...", name),
	}
}

func fileCompletedUpdate(step, total int, res FileResult) ProgressUpdate {
	msg := fmt.Sprintf("Downloaded %s", res.Name)
	if res.Skipped {
		msg = fmt.Sprintf("Skipped %s (already downloaded)", res.Name)
	}
	return ProgressUpdate{
		Phase:   DownloadFiles,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func fileFailedUpdate(step, total int, res FileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Failed %s: %v", res.Name, res.Err),
		Data:    res,
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing manifest to %s...", path),
	}
}
