package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/drivecast/internal/shared"
)

var (
	folderPathPattern = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
	bareIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
)

// ParseFolderLink extracts a folder ID from a shared folder link.
//
// Accepts https://drive.google.com/drive/folders/<id>, links carrying ?id=<id>, and bare IDs.
func ParseFolderLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: empty link", shared.ErrInvalidLink)
	}

	if bareIDPattern.MatchString(link) {
		return link, nil
	}

	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
	}

	if m := folderPathPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}
	if id := u.Query().Get("id"); bareIDPattern.MatchString(id) {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
}
