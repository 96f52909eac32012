package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/drivecast/internal/shared"
)

// RemoteError is a non-2xx response from the remote store.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: status %d", shared.ErrRemoteRequest, e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", shared.ErrRemoteRequest, e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error { return shared.ErrRemoteRequest }

// IsUnauthorized reports whether err carries a 401 from the remote store.
func IsUnauthorized(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusUnauthorized
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ReadResponse drains resp and returns its body, or a [*RemoteError] for a non-2xx status.
func ReadResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrRemoteRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &RemoteError{Status: resp.StatusCode}
		var ae apiError
		if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
			re.Message = ae.Error.Message
		} else {
			re.Message = http.StatusText(resp.StatusCode)
		}
		return nil, re
	}
	return body, nil
}
