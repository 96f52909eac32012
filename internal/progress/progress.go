// Package progress persists resumable story positions and user preferences.
//
// The store keeps two kinds of state in a key-value backend: a single last-session slot,
// overwritten on every state-affecting event, and a bounded per-story history used by
// "continue story". Reads never mutate; a corrupt value is logged and treated as absent.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

// Persisted keys.
const (
	SessionKey      = "drive_player_state"
	HistoryKey      = "drive_story_history"
	SpeedKey        = "drive_speed"
	AutoAdvanceKey  = "drive_auto_advance"
	NarrationKey    = "drive_narration"
	PublicFolderKey = "drive_public_folder"
	UserKey         = "drive_user"
)

// MaxHistory bounds the story history; the least recently accessed entries are evicted first.
const MaxHistory = 50

// derivedKeys are removed by [Store.Clear]. Device preferences survive sign-out.
var derivedKeys = []string{SessionKey, HistoryKey, UserKey}

// KV is the persistent key-value backend.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Narration holds the reader's text-to-speech preferences.
type Narration struct {
	Rate  float64 `json:"rate"`
	Voice string  `json:"voice"`
}

// Store reads and writes progress and preferences.
type Store struct {
	mu     sync.Mutex
	kv     KV
	logger *log.Logger
}

// New creates a store over kv.
func New(kv KV, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{kv: kv, logger: logger}
}

// SaveSession overwrites the last-session slot with p.
func (s *Store) SaveSession(p models.StoryProgress) error {
	data, err := shared.MarshalJSON(p, false)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(SessionKey, string(data))
}

// RestoreSession returns the last session, or nil when none is stored or the stored value is unusable.
func (s *Store) RestoreSession() (*models.StoryProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(SessionKey)
	if err != nil || !ok {
		return nil, err
	}

	var p models.StoryProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil || !p.Valid() {
		s.logger.Warn("ignoring corrupt session snapshot", "error", err)
		return nil, nil
	}
	return &p, nil
}

// ClearSession empties the last-session slot.
func (s *Store) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Remove(SessionKey)
}

// SaveHistory upserts p by story ID and evicts down to [MaxHistory] entries.
func (s *Store) SaveHistory(p models.StoryProgress) error {
	if p.StoryID == "" {
		return fmt.Errorf("%w: story id", shared.ErrMissingArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked()
	replaced := false
	for i := range history {
		if history[i].StoryID == p.StoryID {
			history[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, p)
	}

	sortRecent(history)
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	return s.writeHistoryLocked(history)
}

// Save writes p to both the session slot and the history.
func (s *Store) Save(p models.StoryProgress) error {
	if err := s.SaveSession(p); err != nil {
		return err
	}
	return s.SaveHistory(p)
}

// History returns every entry, most recently accessed first.
func (s *Store) History() []models.StoryProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.historyLocked()
	sortRecent(history)
	return history
}

// RestoreFromHistory returns the entry for storyID, or nil.
func (s *Store) RestoreFromHistory(storyID string) *models.StoryProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.historyLocked() {
		if p.StoryID == storyID {
			return &p
		}
	}
	return nil
}

// RemoveFromHistory deletes storyID from the history. Reports whether an entry was removed.
func (s *Store) RemoveFromHistory(storyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked()
	n := len(history)
	kept := slices.DeleteFunc(history, func(p models.StoryProgress) bool { return p.StoryID == storyID })
	if len(kept) == n {
		return false, nil
	}
	return true, s.writeHistoryLocked(kept)
}

func (s *Store) historyLocked() []models.StoryProgress {
	raw, ok, err := s.kv.Get(HistoryKey)
	if err != nil {
		s.logger.Warn("failed to read story history", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var history []models.StoryProgress
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		s.logger.Warn("ignoring corrupt story history", "error", err)
		return nil
	}
	return slices.DeleteFunc(history, func(p models.StoryProgress) bool { return p.StoryID == "" })
}

func (s *Store) writeHistoryLocked(history []models.StoryProgress) error {
	data, err := shared.MarshalJSON(history, false)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return s.kv.Set(HistoryKey, string(data))
}

func sortRecent(history []models.StoryProgress) {
	slices.SortStableFunc(history, func(a, b models.StoryProgress) int {
		switch {
		case a.LastAccessedEpochMs > b.LastAccessedEpochMs:
			return -1
		case a.LastAccessedEpochMs < b.LastAccessedEpochMs:
			return 1
		default:
			return 0
		}
	})
}

// Speed returns the stored playback rate, or fallback.
func (s *Store) Speed(fallback float64) float64 {
	raw, ok := s.get(SpeedKey)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// SetSpeed stores the playback rate.
func (s *Store) SetSpeed(rate float64) error {
	return s.set(SpeedKey, strconv.FormatFloat(rate, 'f', -1, 64))
}

// AutoAdvance returns the stored auto-advance toggle, or fallback.
func (s *Store) AutoAdvance(fallback bool) bool {
	raw, ok := s.get(AutoAdvanceKey)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// SetAutoAdvance stores the auto-advance toggle.
func (s *Store) SetAutoAdvance(on bool) error {
	return s.set(AutoAdvanceKey, strconv.FormatBool(on))
}

// Narration returns the stored narration preferences, or fallback.
func (s *Store) Narration(fallback Narration) Narration {
	raw, ok := s.get(NarrationKey)
	if !ok {
		return fallback
	}
	var n Narration
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return fallback
	}
	if n.Rate <= 0 {
		n.Rate = fallback.Rate
	}
	return n
}

// SetNarration stores the narration preferences.
func (s *Store) SetNarration(n Narration) error {
	data, err := shared.MarshalJSON(n, false)
	if err != nil {
		return err
	}
	return s.set(NarrationKey, string(data))
}

// PublicFolder returns the remembered public folder bookmark.
func (s *Store) PublicFolder() (models.FolderRef, bool) {
	raw, ok := s.get(PublicFolderKey)
	if !ok {
		return models.FolderRef{}, false
	}
	var ref models.FolderRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil || ref.ID == "" {
		return models.FolderRef{}, false
	}
	return ref, true
}

// SetPublicFolder remembers ref as the public folder bookmark.
func (s *Store) SetPublicFolder(ref models.FolderRef) error {
	data, err := shared.MarshalJSON(ref, false)
	if err != nil {
		return err
	}
	return s.set(PublicFolderKey, string(data))
}

// User returns the cached profile of the signed-in user.
func (s *Store) User() (*models.UserProfile, bool) {
	raw, ok := s.get(UserKey)
	if !ok {
		return nil, false
	}
	var u models.UserProfile
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	return &u, true
}

// SetUser caches the signed-in user's profile.
func (s *Store) SetUser(u models.UserProfile) error {
	data, err := shared.MarshalJSON(u, false)
	if err != nil {
		return err
	}
	return s.set(UserKey, string(data))
}

// Clear removes every key derived from the signed-in session.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range derivedKeys {
		if err := s.kv.Remove(k); err != nil {
			return fmt.Errorf("failed to clear %s: %w", k, err)
		}
	}
	return nil
}

func (s *Store) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("failed to read preference", "key", key, "error", err)
		return "", false
	}
	return raw, ok
}

func (s *Store) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(key, value)
}
