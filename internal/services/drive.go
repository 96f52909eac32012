// Drive v3 implementation of [Store]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

const (
	DefaultDriveBaseURL = "https://www.googleapis.com/drive/v3"
	DefaultUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"

	listFields = "nextPageToken, files(id,name,mimeType,size)"
	pageSize   = 1000
)

// DriveOpts configures a [DriveService].
type DriveOpts struct {
	BaseURL     string       // Drive v3 API root (default: [DefaultDriveBaseURL])
	UserInfoURL string       // Profile endpoint (default: [DefaultUserInfoURL])
	APIKey      string       // Static key appended to public requests
	HTTPClient  *http.Client // Client for public requests (default: [http.DefaultClient])
	Fetcher     Fetcher      // Credential-aware fetcher for authenticated requests
	Logger      *log.Logger
}

// DriveService implements [Store] against the Drive v3 REST API.
type DriveService struct {
	baseURL     string
	userInfoURL string
	apiKey      string
	httpClient  *http.Client
	fetcher     Fetcher
	logger      *log.Logger
}

// NewDriveService creates a Drive client from opts.
func NewDriveService(opts DriveOpts) *DriveService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultDriveBaseURL
	}
	if opts.UserInfoURL == "" {
		opts.UserInfoURL = DefaultUserInfoURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &DriveService{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		userInfoURL: opts.UserInfoURL,
		apiKey:      opts.APIKey,
		httpClient:  opts.HTTPClient,
		fetcher:     opts.Fetcher,
		logger:      opts.Logger,
	}
}

func (s *DriveService) Name() string { return "Google Drive" }

// SetFetcher replaces the credential-aware fetcher.
func (s *DriveService) SetFetcher(f Fetcher) { s.fetcher = f }

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size"`
}

type driveFileList struct {
	NextPageToken string      `json:"nextPageToken"`
	Files         []driveFile `json:"files"`
}

func (f driveFile) entry() models.RemoteEntry {
	size, _ := strconv.ParseInt(f.Size, 10, 64)
	return models.NewRemoteEntry(f.ID, f.Name, f.MimeType, size)
}

// ListChildren implements [Store].
func (s *DriveService) ListChildren(ctx context.Context, folderID string, mode AuthMode) ([]models.RemoteEntry, error) {
	return s.ListChildrenProgress(ctx, folderID, mode, nil)
}

// ListChildrenProgress lists folderID like [DriveService.ListChildren], calling onPage with
// the running entry count after each page.
func (s *DriveService) ListChildrenProgress(
	ctx context.Context,
	folderID string,
	mode AuthMode,
	onPage func(loaded int),
) ([]models.RemoteEntry, error) {
	if folderID == "" {
		return nil, fmt.Errorf("%w: folder id", shared.ErrMissingArgument)
	}

	query := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))
	entries, err := s.list(ctx, query, mode, onPage)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("listed folder", "id", folderID, "entries", len(entries), "mode", mode)
	return entries, nil
}

// FindFolderByName locates a non-trashed folder called name anywhere visible to the caller.
//
// Returns [shared.ErrRootNotFound] when nothing matches.
func (s *DriveService) FindFolderByName(ctx context.Context, name string, mode AuthMode) (models.FolderRef, error) {
	query := fmt.Sprintf(
		"name='%s' and mimeType='%s' and trashed=false",
		escapeQuery(name),
		models.FolderMimeType,
	)

	entries, err := s.list(ctx, query, mode, nil)
	if err != nil {
		return models.FolderRef{}, err
	}

	for _, e := range entries {
		if e.IsFolder() {
			return e.Ref(), nil
		}
	}
	return models.FolderRef{}, fmt.Errorf("%w: %s", shared.ErrRootNotFound, name)
}

// FolderInfo fetches the name of folderID.
func (s *DriveService) FolderInfo(ctx context.Context, folderID string, mode AuthMode) (models.FolderRef, error) {
	params := url.Values{}
	params.Set("fields", "id,name,mimeType")
	endpoint := fmt.Sprintf("%s/files/%s?%s", s.baseURL, url.PathEscape(folderID), params.Encode())

	body, err := s.get(ctx, endpoint, mode)
	if err != nil {
		return models.FolderRef{}, err
	}

	var f driveFile
	if err := json.Unmarshal(body, &f); err != nil {
		return models.FolderRef{}, fmt.Errorf("%w: failed to decode file: %v", shared.ErrRemoteRequest, err)
	}
	if f.MimeType != "" && f.MimeType != models.FolderMimeType {
		return models.FolderRef{}, fmt.Errorf("%w: %s is not a folder", shared.ErrInvalidLink, folderID)
	}
	return models.FolderRef{ID: f.ID, Name: f.Name}, nil
}

// FetchContent implements [Store].
func (s *DriveService) FetchContent(ctx context.Context, entryID string, mode AuthMode) ([]byte, error) {
	if entryID == "" {
		return nil, fmt.Errorf("%w: entry id", shared.ErrMissingArgument)
	}

	endpoint := fmt.Sprintf("%s/files/%s?alt=media", s.baseURL, url.PathEscape(entryID))
	return s.get(ctx, endpoint, mode)
}

// UserInfo fetches the signed-in user's profile.
func (s *DriveService) UserInfo(ctx context.Context) (*models.UserProfile, error) {
	body, err := s.get(ctx, s.userInfoURL, Authenticated)
	if err != nil {
		return nil, err
	}

	var profile models.UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("%w: failed to decode profile: %v", shared.ErrRemoteRequest, err)
	}
	return &profile, nil
}

func (s *DriveService) list(
	ctx context.Context,
	query string,
	mode AuthMode,
	onPage func(int),
) ([]models.RemoteEntry, error) {
	var entries []models.RemoteEntry
	pageToken := ""
	seen := map[string]bool{}

	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", listFields)
		params.Set("pageSize", strconv.Itoa(pageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		body, err := s.get(ctx, s.baseURL+"/files?"+params.Encode(), mode)
		if err != nil {
			return nil, err
		}

		var page driveFileList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: failed to decode file list: %v", shared.ErrRemoteRequest, err)
		}

		for _, f := range page.Files {
			entries = append(entries, f.entry())
		}
		if onPage != nil {
			onPage(len(entries))
		}

		if page.NextPageToken == "" {
			return entries, nil
		}
		if seen[page.NextPageToken] {
			return nil, &RemoteError{Status: http.StatusOK, Message: fmt.Sprintf("page token %q repeated", page.NextPageToken)}
		}
		seen[page.NextPageToken] = true
		pageToken = page.NextPageToken
	}
}

func (s *DriveService) get(ctx context.Context, endpoint string, mode AuthMode) ([]byte, error) {
	switch mode {
	case Authenticated:
		if s.fetcher == nil {
			return nil, shared.ErrNotAuthenticated
		}
		return s.fetcher.AuthorizedFetch(ctx, endpoint)
	case Public:
		return s.publicGet(ctx, endpoint)
	default:
		return nil, fmt.Errorf("%w: auth mode %v", shared.ErrInvalidArgument, mode)
	}
}

func (s *DriveService) publicGet(ctx context.Context, endpoint string) ([]byte, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: api_key is required for public folders", shared.ErrMissingCredentials)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	q := u.Query()
	q.Set("key", s.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRemoteRequest, err)
	}
	return ReadResponse(resp)
}

func escapeQuery(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
