// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/services"
)

// MemoryKV is an in-memory key-value store satisfying the persistence interfaces.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
	Err  error // returned from every call when set
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FakeStore is an in-memory [services.Store] with call accounting.
type FakeStore struct {
	mu       sync.Mutex
	children map[string][]models.RemoteEntry
	content  map[string][]byte
	errs     map[string]error

	listCalls  map[string]int
	fetchCalls map[string]int
	modes      []services.AuthMode

	// Gate, when set, blocks every FetchContent until it is closed.
	Gate chan struct{}
	// Started receives the entry ID of every FetchContent as it begins, when set.
	Started chan string
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		children:   make(map[string][]models.RemoteEntry),
		content:    make(map[string][]byte),
		errs:       make(map[string]error),
		listCalls:  make(map[string]int),
		fetchCalls: make(map[string]int),
	}
}

// AddFolder registers an empty folder id under parent.
func (f *FakeStore) AddFolder(parent, id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[parent] = append(f.children[parent], models.NewRemoteEntry(id, name, models.FolderMimeType, 0))
	if _, ok := f.children[id]; !ok {
		f.children[id] = nil
	}
}

// AddFile registers a file under parent with the given content.
func (f *FakeStore) AddFile(parent, id, name, mimeType string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[parent] = append(f.children[parent], models.NewRemoteEntry(id, name, mimeType, int64(len(content))))
	f.content[id] = content
}

// FailOn makes every call touching id return err.
func (f *FakeStore) FailOn(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, id)
		return
	}
	f.errs[id] = err
}

func (f *FakeStore) ListChildren(ctx context.Context, folderID string, mode services.AuthMode) ([]models.RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[folderID]++
	f.modes = append(f.modes, mode)
	if err := f.errs[folderID]; err != nil {
		return nil, err
	}
	entries, ok := f.children[folderID]
	if !ok {
		return nil, &services.RemoteError{Status: http.StatusNotFound, Message: "File not found: " + folderID}
	}
	return append([]models.RemoteEntry(nil), entries...), nil
}

func (f *FakeStore) FetchContent(ctx context.Context, entryID string, mode services.AuthMode) ([]byte, error) {
	f.mu.Lock()
	f.fetchCalls[entryID]++
	f.modes = append(f.modes, mode)
	gate, started := f.Gate, f.Started
	f.mu.Unlock()

	if started != nil {
		started <- entryID
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[entryID]; err != nil {
		return nil, err
	}
	data, ok := f.content[entryID]
	if !ok {
		return nil, &services.RemoteError{Status: http.StatusNotFound, Message: "File not found: " + entryID}
	}
	return data, nil
}

// ListCount returns how many times folderID was listed.
func (f *FakeStore) ListCount(folderID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[folderID]
}

// FetchCount returns how many times entryID was fetched.
func (f *FakeStore) FetchCount(entryID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls[entryID]
}

// Modes returns the access modes of every call so far.
func (f *FakeStore) Modes() []services.AuthMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.AuthMode(nil), f.modes...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	mu       sync.Mutex
	response *http.Response
	err      error
	Requests []*http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	return m.response, m.err
}

// Calls returns the number of requests seen.
func (m *MockRoundTripper) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
