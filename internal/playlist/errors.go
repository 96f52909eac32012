package playlist

import (
	"fmt"

	"github.com/desertthunder/drivecast/internal/shared"
)

// PlaybackFetchError reports that an item's content could not be loaded.
//
// It matches [shared.ErrPlaybackFetch] and the underlying cause with [errors.Is].
type PlaybackFetchError struct {
	ItemID   string
	ItemName string
	Err      error
}

func (e *PlaybackFetchError) Error() string {
	return fmt.Sprintf("%v: %s: %v", shared.ErrPlaybackFetch, e.ItemName, e.Err)
}

func (e *PlaybackFetchError) Unwrap() []error {
	return []error{shared.ErrPlaybackFetch, e.Err}
}
