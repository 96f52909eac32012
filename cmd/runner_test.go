package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/progress"
	"github.com/desertthunder/drivecast/internal/repositories"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/desertthunder/drivecast/internal/tasks"
	tu "github.com/desertthunder/drivecast/internal/testing"
	"github.com/urfave/cli/v3"
)

const (
	publicID = "publicFolder123"
	duneID   = "duneFolder456"
)

// memoryDownloads is an in-memory [DownloadStore].
type memoryDownloads struct {
	mu   sync.Mutex
	rows map[string]*models.Download
}

func newMemoryDownloads() *memoryDownloads {
	return &memoryDownloads{rows: map[string]*models.Download{}}
}

func (m *memoryDownloads) Record(d *models.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[d.StoryID+"/"+d.FileID] = d
	return nil
}

func (m *memoryDownloads) Get(storyID, fileID string) (*models.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[storyID+"/"+fileID]; ok {
		return d, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryDownloads) ListByStory(storyID string) ([]*models.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Download
	for _, d := range m.rows {
		if d.StoryID == storyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryDownloads) DeleteStory(storyID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, d := range m.rows {
		if d.StoryID == storyID {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

// driveServer serves a public folder holding a "Dune" story with two audio files.
func driveServer(t *testing.T) *httptest.Server {
	t.Helper()
	file := func(id, name, mime string, size int) map[string]any {
		return map[string]any{"id": id, "name": name, "mimeType": mime, "size": fmt.Sprint(size)}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		var body any
		switch {
		case r.URL.Path == "/files":
			q := r.URL.Query().Get("q")
			switch {
			case strings.Contains(q, publicID):
				body = map[string]any{"files": []any{
					file(duneID, "Dune", models.FolderMimeType, 0),
					file("cover", "cover.jpg", "image/jpeg", 3),
				}}
			case strings.Contains(q, duneID):
				body = map[string]any{"files": []any{
					file("a2", "02 - Storm.mp3", "audio/mpeg", 5),
					file("a1", "01 - Intro.mp3", "audio/mpeg", 5),
				}}
			default:
				body = map[string]any{"files": []any{}}
			}
		case r.URL.Query().Get("alt") == "media":
			w.Write([]byte("audio"))
			return
		case r.URL.Path == "/files/"+publicID:
			body = file(publicID, "Shared", models.FolderMimeType, 0)
		case r.URL.Path == "/files/"+duneID:
			body = file(duneID, "Dune", models.FolderMimeType, 0)
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

// testRunner wires a runner over in-memory persistence and a fake Drive.
func testRunner(t *testing.T) (*Runner, *bytes.Buffer, *tu.MemoryKV, *memoryDownloads) {
	t.Helper()
	server := driveServer(t)
	output := &bytes.Buffer{}
	kv := tu.NewMemoryKV()
	downloads := newMemoryDownloads()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "drivecast.db")

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Logger:    shared.NewLogger(&bytes.Buffer{}),
		Output:    output,
		KV:        kv,
		Downloads: downloads,
		Drive: services.NewDriveService(services.DriveOpts{
			BaseURL: server.URL,
			APIKey:  "test-key",
		}),
	})
	return runner, output, kv, downloads
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "drivecast", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"drivecast"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			kv := tu.NewMemoryKV()
			drive := services.NewDriveService(services.DriveOpts{})

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				KV:         kv,
				Drive:      drive,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.kv != kv {
				t.Error("expected kv to be set")
			}
			if runner.drive != drive {
				t.Error("expected drive to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("open", func(t *testing.T) {
		t.Run("builds layers over injected persistence", func(t *testing.T) {
			runner, _, _, _ := testRunner(t)

			if err := runner.open(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.db != nil {
				t.Error("expected no database when kv and downloads are injected")
			}
			if runner.auth == nil || runner.progress == nil {
				t.Error("expected auth manager and progress store to be built")
			}
		})

		t.Run("opens the configured database", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "nested", "drivecast.db")
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(&bytes.Buffer{})})
			defer runner.Close()

			if err := runner.open(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.db == nil {
				t.Fatal("expected database to be opened")
			}
			tu.AssertFileExists(t, config.Database.Path)
			if err := runner.kv.Set("k", "v"); err != nil {
				t.Errorf("expected kv to be usable, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "auth", "ls", "play", "read", "public", "history", "download", "cache", "api", "tui"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	t.Run("public link opens and is remembered", func(t *testing.T) {
		runner, output, kv, _ := testRunner(t)

		if err := run(t, runner, "public", publicID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Opened Shared (public)") {
			t.Errorf("expected confirmation, got %s", result)
		}
		if !strings.Contains(result, "Dune") {
			t.Errorf("expected child folder in listing, got %s", result)
		}
		if !strings.Contains(result, "1 other files hidden") {
			t.Errorf("expected non-story files to be counted, got %s", result)
		}

		ref, ok := progress.New(kv, nil).PublicFolder()
		if !ok || ref.ID != publicID {
			t.Errorf("expected public folder to be saved, got %+v", ref)
		}
	})

	t.Run("ls descends a path", func(t *testing.T) {
		runner, output, _, _ := testRunner(t)

		if err := run(t, runner, "ls", "--link", publicID, "--path", "dune", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var rows []listingRow
		if err := json.Unmarshal(output.Bytes(), &rows); err != nil {
			t.Fatalf("expected JSON output, got %s", output.String())
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(rows))
		}
		if rows[0].Name != "01 - Intro.mp3" || rows[1].Name != "02 - Storm.mp3" {
			t.Errorf("expected natural order, got %+v", rows)
		}
		if rows[0].Kind != "audio" {
			t.Errorf("expected audio kind, got %s", rows[0].Kind)
		}
	})

	t.Run("ls reports unknown folder", func(t *testing.T) {
		runner, _, _, _ := testRunner(t)

		err := run(t, runner, "ls", "--link", publicID, "--path", "Arrakis")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("ls without sign-in or public folder", func(t *testing.T) {
		runner, _, _, _ := testRunner(t)

		err := run(t, runner, "ls")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestHistoryCommands(t *testing.T) {
	seed := func(t *testing.T, kv *tu.MemoryKV) {
		t.Helper()
		store := progress.New(kv, nil)
		for i, name := range []string{"Dune", "Emma"} {
			p := models.StoryProgress{
				StoryID:             strings.ToLower(name),
				StoryName:           name,
				CurrentIndex:        i,
				TotalItems:          3,
				LastAccessedEpochMs: int64(1700000000000 + i),
				Mode:                models.ModeAudio,
				Access:              models.AccessPublic,
			}
			if err := store.SaveHistory(p); err != nil {
				t.Fatalf("failed to seed history: %v", err)
			}
		}
	}

	t.Run("list", func(t *testing.T) {
		runner, output, kv, _ := testRunner(t)
		seed(t, kv)

		if err := run(t, runner, "history", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var history []models.StoryProgress
		if err := json.Unmarshal(output.Bytes(), &history); err != nil {
			t.Fatalf("expected JSON output, got %s", output.String())
		}
		if len(history) != 2 || history[0].StoryID != "emma" {
			t.Errorf("expected most recent first, got %+v", history)
		}
	})

	t.Run("list empty", func(t *testing.T) {
		runner, output, _, _ := testRunner(t)

		if err := run(t, runner, "history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No saved stories yet.") {
			t.Errorf("expected empty message, got %s", output.String())
		}
	})

	t.Run("remove", func(t *testing.T) {
		runner, output, kv, _ := testRunner(t)
		seed(t, kv)

		if err := run(t, runner, "history", "remove", "dune"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Removed dune") {
			t.Errorf("expected confirmation, got %s", output.String())
		}
		if h := progress.New(kv, nil).History(); len(h) != 1 || h[0].StoryID != "emma" {
			t.Errorf("expected only emma to remain, got %+v", h)
		}

		if err := run(t, runner, "history", "remove", "dune"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for unknown story, got %v", err)
		}
	})

	t.Run("remove requires id", func(t *testing.T) {
		runner, _, _, _ := testRunner(t)

		if err := run(t, runner, "history", "remove"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("export", func(t *testing.T) {
		runner, output, kv, _ := testRunner(t)
		seed(t, kv)
		path := filepath.Join(t.TempDir(), "history.csv")

		if err := run(t, runner, "history", "export", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "dune,Dune,audio,public") {
			t.Errorf("expected Dune row, got %s", content)
		}
		if !strings.Contains(output.String(), "Exported 2 stories") {
			t.Errorf("expected confirmation, got %s", output.String())
		}
	})
}

func TestDownloadCommands(t *testing.T) {
	t.Run("download then list and clear cache", func(t *testing.T) {
		runner, output, _, downloads := testRunner(t)
		out := t.TempDir()

		err := run(t, runner, "download", "--link", publicID, "--path", "Dune", "--output", out, "--tag=false", "--rate", "100")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		dir := filepath.Join(out, "Dune")
		for _, name := range []string{"01 - Intro.mp3", "02 - Storm.mp3", "manifest.json"} {
			tu.AssertFileExists(t, filepath.Join(dir, name))
		}
		if !strings.Contains(output.String(), "Downloaded: 2") {
			t.Errorf("expected summary, got %s", output.String())
		}

		recorded, _ := downloads.ListByStory(duneID)
		if len(recorded) != 2 {
			t.Fatalf("expected 2 recorded downloads, got %d", len(recorded))
		}

		output.Reset()
		if err := run(t, runner, "cache", "list", "--json", duneID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "02 - Storm.mp3") {
			t.Errorf("expected cached file, got %s", output.String())
		}

		output.Reset()
		if err := run(t, runner, "cache", "clear", "--files", duneID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Cleared 2 download records") {
			t.Errorf("expected confirmation, got %s", output.String())
		}
		if _, err := os.Stat(filepath.Join(dir, "01 - Intro.mp3")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected downloaded file to be removed, got %v", err)
		}
	})

	t.Run("renderProgress draws the file phase", func(t *testing.T) {
		runner, _, _, _ := testRunner(t)
		w := &bytes.Buffer{}
		updates := make(chan tasks.ProgressUpdate, 4)
		updates <- tasks.ProgressUpdate{Phase: tasks.ListStory, Message: "Listing story (Dune)..."}
		updates <- tasks.ProgressUpdate{Phase: tasks.DownloadFiles, Step: 1, Total: 2, Message: "Downloaded a", Data: tasks.FileResult{Name: "a"}}
		updates <- tasks.ProgressUpdate{Phase: tasks.DownloadFiles, Step: 2, Total: 2, Message: "Failed b", Data: tasks.FileResult{Name: "b", Err: errors.New("boom")}}
		close(updates)

		runner.renderProgress(w, updates)

		if !strings.Contains(w.String(), "Downloading") {
			t.Errorf("expected progress bar output, got %q", w.String())
		}
	})
}

func TestAPICommand(t *testing.T) {
	t.Run("public get prints JSON", func(t *testing.T) {
		runner, output, _, _ := testRunner(t)

		if err := run(t, runner, "api", "get", "--public", "--compact", "/files/"+publicID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"name":"Shared"`) {
			t.Errorf("expected compact JSON, got %s", output.String())
		}
	})

	t.Run("requires a path", func(t *testing.T) {
		runner, _, _, _ := testRunner(t)

		if err := run(t, runner, "api", "get"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("remote failure", func(t *testing.T) {
		runner, _, _, _ := testRunner(t)

		if err := run(t, runner, "api", "get", "--public", "/nope"); !errors.Is(err, shared.ErrRemoteRequest) {
			t.Errorf("expected ErrRemoteRequest, got %v", err)
		}
	})
}

func TestAuthStatus(t *testing.T) {
	runner, output, kv, _ := testRunner(t)
	store := progress.New(kv, nil)
	if err := store.SetPublicFolder(models.FolderRef{ID: publicID, Name: "Shared"}); err != nil {
		t.Fatalf("failed to seed public folder: %v", err)
	}

	if err := run(t, runner, "auth", "status", "--json"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var status map[string]string
	if err := json.Unmarshal(output.Bytes(), &status); err != nil {
		t.Fatalf("expected JSON output, got %s", output.String())
	}
	if status["state"] != "signed_out" {
		t.Errorf("expected signed out, got %q", status["state"])
	}
	if status["public_folder"] != "Shared ("+publicID+")" {
		t.Errorf("expected public folder, got %q", status["public_folder"])
	}
}
