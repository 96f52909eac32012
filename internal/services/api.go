// Raw Drive v3 requests for the api command
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/drivecast/internal/shared"
)

// APIResponse represents a raw API response body.
type APIResponse struct {
	URL      string
	Body     []byte
	IsJSON   bool
	JSONData any
}

// Raw performs a GET of path against the Drive API root and returns the undecoded response.
//
// path is relative to the API root ("/files/abc?fields=name") or an absolute URL under it.
// Authentication follows mode exactly as listings do.
func (s *DriveService) Raw(ctx context.Context, path string, mode AuthMode) (*APIResponse, error) {
	endpoint, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("raw request", "url", endpoint, "mode", mode)
	body, err := s.get(ctx, endpoint, mode)
	if err != nil {
		return nil, err
	}

	resp := &APIResponse{URL: endpoint, Body: body}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		resp.IsJSON = true
		resp.JSONData = jsonData
	}
	return resp, nil
}

func (s *DriveService) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return "", fmt.Errorf("%w: path", shared.ErrMissingArgument)
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		if !strings.HasPrefix(path, s.baseURL+"/") {
			return "", fmt.Errorf("%w: %s is outside %s", shared.ErrInvalidArgument, path, s.baseURL)
		}
		return path, nil
	case strings.HasPrefix(path, "/"):
		return s.baseURL + path, nil
	default:
		return s.baseURL + "/" + path, nil
	}
}
