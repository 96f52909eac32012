package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenStore(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return db
}

func TestKVRepository(t *testing.T) {
	t.Run("Get Missing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewKVRepository(db)
		_, ok, err := repo.Get("nope")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected missing key")
		}
	})

	t.Run("Set Overwrites", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewKVRepository(db)
		if err := repo.Set("drive_speed", "1.25"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Set("drive_speed", "1.5"); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}

		v, ok, err := repo.Get("drive_speed")
		if err != nil || !ok {
			t.Fatalf("expected stored value, got ok=%v err=%v", ok, err)
		}
		if v != "1.5" {
			t.Errorf("expected 1.5, got %s", v)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewKVRepository(db)
		repo.Set("k", "v")
		if err := repo.Remove("k"); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}
		if _, ok, _ := repo.Get("k"); ok {
			t.Error("expected key to be removed")
		}
		if err := repo.Remove("k"); err != nil {
			t.Errorf("removing a missing key should succeed, got %v", err)
		}
	})

	t.Run("SetMany And Keys", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewKVRepository(db)
		err := repo.SetMany(map[string]string{
			"drive_speed":        "1",
			"drive_user":         "{}",
			"drive_player_state": "{}",
			"other":              "x",
		})
		if err != nil {
			t.Fatalf("failed to set many: %v", err)
		}

		keys, err := repo.Keys("drive_")
		if err != nil {
			t.Fatalf("failed to list keys: %v", err)
		}
		want := []string{"drive_player_state", "drive_speed", "drive_user"}
		if len(keys) != len(want) {
			t.Fatalf("expected %v, got %v", want, keys)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("expected %s at %d, got %s", want[i], i, keys[i])
			}
		}
	})

	t.Run("Keys Escapes Wildcards", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewKVRepository(db)
		repo.Set("a_b", "1")
		repo.Set("axb", "2")

		keys, err := repo.Keys("a_")
		if err != nil {
			t.Fatalf("failed to list keys: %v", err)
		}
		if len(keys) != 1 || keys[0] != "a_b" {
			t.Errorf("expected only a_b, got %v", keys)
		}
	})
}

func TestDownloadRepository(t *testing.T) {
	t.Run("Record And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewDownloadRepository(db)
		d := &models.Download{RunID: "run1", StoryID: "s1", FileID: "f1", Name: "01.mp3", Path: "/tmp/01.mp3", SizeBytes: 10}
		if err := repo.Record(d); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
		if d.ID == "" {
			t.Error("expected ID to be generated")
		}

		got, err := repo.Get("s1", "f1")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Path != "/tmp/01.mp3" || got.SizeBytes != 10 {
			t.Errorf("unexpected download %+v", got)
		}
	})

	t.Run("Record Upserts", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewDownloadRepository(db)
		repo.Record(&models.Download{RunID: "r1", StoryID: "s1", FileID: "f1", Name: "a", Path: "/old"})
		repo.Record(&models.Download{RunID: "r2", StoryID: "s1", FileID: "f1", Name: "a", Path: "/new"})

		list, err := repo.ListByStory("s1")
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 row, got %d", len(list))
		}
		if list[0].Path != "/new" || list[0].RunID != "r2" {
			t.Errorf("expected refreshed row, got %+v", list[0])
		}
	})

	t.Run("Validation", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewDownloadRepository(db).Record(&models.Download{Name: "x"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewDownloadRepository(db).Get("s", "f")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListByStory And DeleteStory", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewDownloadRepository(db)
		repo.Record(&models.Download{StoryID: "s1", FileID: "f2", Name: "b"})
		repo.Record(&models.Download{StoryID: "s1", FileID: "f1", Name: "a"})
		repo.Record(&models.Download{StoryID: "s2", FileID: "f3", Name: "c"})

		list, err := repo.ListByStory("s1")
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 2 || list[0].Name != "a" {
			t.Errorf("unexpected listing %+v", list)
		}

		n, err := repo.DeleteStory("s1")
		if err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 rows removed, got %d", n)
		}
		if rest, _ := repo.ListByStory("s2"); len(rest) != 1 {
			t.Errorf("expected other story untouched, got %d", len(rest))
		}
	})
}
