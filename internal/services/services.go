package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/models"
)

// AuthMode selects how a remote request is authorized.
type AuthMode int

const (
	// Authenticated requests carry the bearer token of the signed-in user.
	Authenticated AuthMode = iota
	// Public requests carry only the static API key and are never retried.
	Public
)

func (m AuthMode) String() string {
	switch m {
	case Authenticated:
		return "authenticated"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("AuthMode(%d)", int(m))
	}
}

// Access maps the mode onto the persisted [models.Access] value.
func (m AuthMode) Access() models.Access {
	if m == Public {
		return models.AccessPublic
	}
	return models.AccessAuthenticated
}

// ModeFor is the inverse of [AuthMode.Access].
func ModeFor(a models.Access) AuthMode {
	if a == models.AccessPublic {
		return Public
	}
	return Authenticated
}

// Store lists folders and fetches file content from the remote store.
type Store interface {
	// ListChildren returns every child of folderID, following pagination until exhausted.
	ListChildren(ctx context.Context, folderID string, mode AuthMode) ([]models.RemoteEntry, error)

	// FetchContent returns the raw bytes of entryID.
	FetchContent(ctx context.Context, entryID string, mode AuthMode) ([]byte, error)
}

// Fetcher performs a GET with the current user's credential attached.
//
// Implemented by the credential manager, which owns the token and its expiry transitions.
type Fetcher interface {
	AuthorizedFetch(ctx context.Context, url string) ([]byte, error)
}
