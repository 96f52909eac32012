package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

// bearerFetcher mimics the credential manager against a test server.
type bearerFetcher struct {
	token string
	urls  []string
}

func (f *bearerFetcher) AuthorizedFetch(ctx context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	return ReadResponse(resp)
}

func TestDriveService(t *testing.T) {
	t.Run("NewDriveService defaults", func(t *testing.T) {
		svc := NewDriveService(DriveOpts{})
		if svc.baseURL != DefaultDriveBaseURL {
			t.Errorf("expected base URL %s, got %s", DefaultDriveBaseURL, svc.baseURL)
		}
		if svc.userInfoURL != DefaultUserInfoURL {
			t.Errorf("expected user info URL %s, got %s", DefaultUserInfoURL, svc.userInfoURL)
		}
		if svc.Name() != "Google Drive" {
			t.Errorf("unexpected name %s", svc.Name())
		}
	})

	t.Run("ListChildren Public Pagination", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if r.URL.Path != "/files" {
				t.Errorf("expected path /files, got %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "" {
				t.Error("public request must not send Authorization")
			}

			q := r.URL.Query()
			if q.Get("key") != "test-key" {
				t.Errorf("expected key=test-key, got %s", q.Get("key"))
			}
			if q.Get("q") != "'folder1' in parents and trashed=false" {
				t.Errorf("unexpected query %q", q.Get("q"))
			}
			if q.Get("pageSize") != "1000" {
				t.Errorf("expected pageSize 1000, got %s", q.Get("pageSize"))
			}
			if q.Get("fields") != listFields {
				t.Errorf("unexpected fields %q", q.Get("fields"))
			}

			w.Header().Set("Content-Type", "application/json")
			switch q.Get("pageToken") {
			case "":
				json.NewEncoder(w).Encode(map[string]any{
					"nextPageToken": "page2",
					"files": []map[string]string{
						{"id": "a", "name": "01.mp3", "mimeType": "audio/mpeg", "size": "2048"},
						{"id": "b", "name": "Sub", "mimeType": models.FolderMimeType},
					},
				})
			case "page2":
				json.NewEncoder(w).Encode(map[string]any{
					"files": []map[string]string{
						{"id": "c", "name": "1.json", "mimeType": "application/json"},
					},
				})
			default:
				t.Errorf("unexpected page token %s", q.Get("pageToken"))
			}
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "test-key"})

		var progress []int
		entries, err := svc.ListChildrenProgress(context.Background(), "folder1", Public, func(n int) {
			progress = append(progress, n)
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if calls != 2 {
			t.Errorf("expected 2 requests, got %d", calls)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		if entries[0].Kind != models.KindAudio || entries[0].SizeBytes != 2048 {
			t.Errorf("unexpected first entry %+v", entries[0])
		}
		if entries[1].Kind != models.KindFolder {
			t.Errorf("expected folder, got %v", entries[1].Kind)
		}
		if entries[2].Kind != models.KindText {
			t.Errorf("expected text, got %v", entries[2].Kind)
		}
		if len(progress) != 2 || progress[0] != 2 || progress[1] != 3 {
			t.Errorf("unexpected progress %v", progress)
		}
	})

	t.Run("ListChildren Repeated Page Token", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"nextPageToken": "loop",
				"files":         []map[string]string{{"id": "a", "name": "01.mp3", "mimeType": "audio/mpeg"}},
			})
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "test-key"})
		_, err := svc.ListChildren(context.Background(), "folder1", Public)
		if !errors.Is(err, shared.ErrRemoteRequest) {
			t.Fatalf("expected ErrRemoteRequest, got %v", err)
		}
		var re *RemoteError
		if !errors.As(err, &re) || !strings.Contains(re.Message, "loop") {
			t.Errorf("expected RemoteError naming the token, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 requests before giving up, got %d", calls)
		}
	})

	t.Run("ListChildren Authenticated", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
			}
			if r.URL.Query().Get("key") != "" {
				t.Error("authenticated request must not carry the API key")
			}
			json.NewEncoder(w).Encode(map[string]any{"files": []map[string]string{}})
		}))
		defer server.Close()

		fetcher := &bearerFetcher{token: "tok"}
		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "k", Fetcher: fetcher})

		entries, err := svc.ListChildren(context.Background(), "f", Authenticated)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty listing, got %d", len(entries))
		}
		if len(fetcher.urls) != 1 {
			t.Errorf("expected one fetch, got %d", len(fetcher.urls))
		}
	})

	t.Run("Authenticated Without Fetcher", func(t *testing.T) {
		svc := NewDriveService(DriveOpts{})
		_, err := svc.ListChildren(context.Background(), "f", Authenticated)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Public Without Key", func(t *testing.T) {
		svc := NewDriveService(DriveOpts{})
		_, err := svc.FetchContent(context.Background(), "x", Public)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Missing Folder ID", func(t *testing.T) {
		svc := NewDriveService(DriveOpts{APIKey: "k"})
		_, err := svc.ListChildren(context.Background(), "", Public)
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("RemoteError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":404,"message":"File not found: x"}}`))
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "k"})
		_, err := svc.FetchContent(context.Background(), "x", Public)

		var re *RemoteError
		if !errors.As(err, &re) {
			t.Fatalf("expected RemoteError, got %v", err)
		}
		if re.Status != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", re.Status)
		}
		if re.Message != "File not found: x" {
			t.Errorf("unexpected message %q", re.Message)
		}
		if !errors.Is(err, shared.ErrRemoteRequest) {
			t.Error("RemoteError should unwrap to ErrRemoteRequest")
		}
		if IsUnauthorized(err) {
			t.Error("404 should not be unauthorized")
		}
	})

	t.Run("RemoteError Without Envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "k"})
		_, err := svc.FetchContent(context.Background(), "x", Public)
		if !IsUnauthorized(err) {
			t.Errorf("expected unauthorized error, got %v", err)
		}
		if !strings.Contains(err.Error(), "Unauthorized") {
			t.Errorf("expected status text in message, got %v", err)
		}
	})

	t.Run("FetchContent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/files/file123" {
				t.Errorf("expected path /files/file123, got %s", r.URL.Path)
			}
			if r.URL.Query().Get("alt") != "media" {
				t.Error("expected alt=media")
			}
			w.Write([]byte("audio-bytes"))
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "k"})
		data, err := svc.FetchContent(context.Background(), "file123", Public)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(data) != "audio-bytes" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("FindFolderByName", func(t *testing.T) {
		found := true
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query().Get("q")
			if !strings.Contains(q, "name='StoryDownloader'") || !strings.Contains(q, models.FolderMimeType) {
				t.Errorf("unexpected query %q", q)
			}
			files := []map[string]string{}
			if found {
				files = append(files, map[string]string{"id": "root1", "name": "StoryDownloader", "mimeType": models.FolderMimeType})
			}
			json.NewEncoder(w).Encode(map[string]any{"files": files})
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "k"})

		ref, err := svc.FindFolderByName(context.Background(), "StoryDownloader", Public)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ref.ID != "root1" {
			t.Errorf("expected root1, got %s", ref.ID)
		}

		found = false
		_, err = svc.FindFolderByName(context.Background(), "StoryDownloader", Public)
		if !errors.Is(err, shared.ErrRootNotFound) {
			t.Errorf("expected ErrRootNotFound, got %v", err)
		}
	})

	t.Run("FolderInfo", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/files/folder1":
				json.NewEncoder(w).Encode(map[string]string{"id": "folder1", "name": "Shared", "mimeType": models.FolderMimeType})
			default:
				json.NewEncoder(w).Encode(map[string]string{"id": "file1", "name": "a.mp3", "mimeType": "audio/mpeg"})
			}
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{BaseURL: server.URL, APIKey: "k"})

		ref, err := svc.FolderInfo(context.Background(), "folder1", Public)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ref.Name != "Shared" {
			t.Errorf("expected name Shared, got %s", ref.Name)
		}

		if _, err := svc.FolderInfo(context.Background(), "file1", Public); !errors.Is(err, shared.ErrInvalidLink) {
			t.Errorf("expected ErrInvalidLink for non-folder, got %v", err)
		}
	})

	t.Run("UserInfo", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"name":    "Test User",
				"email":   "test@example.com",
				"picture": "https://example.com/p.png",
			})
		}))
		defer server.Close()

		svc := NewDriveService(DriveOpts{UserInfoURL: server.URL, Fetcher: &bearerFetcher{token: "t"}})
		profile, err := svc.UserInfo(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if profile.Email != "test@example.com" {
			t.Errorf("unexpected email %s", profile.Email)
		}
	})
}

func TestParseFolderLink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    string
		wantErr bool
	}{
		{"folders URL", "https://drive.google.com/drive/folders/1AbC_def-GHIjkl", "1AbC_def-GHIjkl", false},
		{"folders URL with user segment", "https://drive.google.com/drive/u/0/folders/1AbC_def-GHIjkl?usp=sharing", "1AbC_def-GHIjkl", false},
		{"id query", "https://drive.google.com/open?id=1AbC_def-GHIjkl", "1AbC_def-GHIjkl", false},
		{"bare id", "1AbC_def-GHIjkl", "1AbC_def-GHIjkl", false},
		{"padded", "  1AbC_def-GHIjkl  ", "1AbC_def-GHIjkl", false},
		{"empty", "", "", true},
		{"unrelated URL", "https://example.com/page", "", true},
		{"short garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFolderLink(tt.link)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidLink) {
					t.Errorf("expected ErrInvalidLink, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
