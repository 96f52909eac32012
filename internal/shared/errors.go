package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Credential lifecycle errors
	ErrAuthFailed        = fmt.Errorf("authentication failed")
	ErrNotAuthenticated  = fmt.Errorf("not authenticated")
	ErrCredentialExpired = fmt.Errorf("credential expired")
	ErrRenewalFailed     = fmt.Errorf("credential renewal failed")
	ErrRenewalTimeout    = fmt.Errorf("credential renewal timed out")

	// Remote store and playback errors
	ErrRemoteRequest    = fmt.Errorf("remote request failed")
	ErrRootNotFound     = fmt.Errorf("root folder not found")
	ErrPlaybackFetch    = fmt.Errorf("failed to fetch playable content")
	ErrMalformedContent = fmt.Errorf("malformed chapter content")
	ErrNothingToPlay    = fmt.Errorf("no playable items")
	ErrAlreadyRunning   = fmt.Errorf("another player session is running")

	// Input validation errors
	ErrInvalidLink     = fmt.Errorf("invalid folder link")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
