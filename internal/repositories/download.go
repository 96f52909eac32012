package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

// DownloadRepository persists [models.Download] rows.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new [DownloadRepository] with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Record inserts d, or refreshes the existing row for the same story and file.
// An empty ID is generated.
func (r *DownloadRepository) Record(d *models.Download) error {
	if d.StoryID == "" || d.FileID == "" {
		return fmt.Errorf("%w: download needs story and file ids", shared.ErrInvalidArgument)
	}
	if d.ID == "" {
		d.ID = shared.GenerateID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO downloads (id, run_id, story_id, file_id, name, path, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(story_id, file_id) DO UPDATE SET
			run_id = excluded.run_id,
			name = excluded.name,
			path = excluded.path,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at
	`
	_, err := r.db.Exec(query, d.ID, d.RunID, d.StoryID, d.FileID, d.Name, d.Path, d.SizeBytes, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// Get returns the download of fileID within storyID.
func (r *DownloadRepository) Get(storyID, fileID string) (*models.Download, error) {
	row := r.db.QueryRow(`
		SELECT id, run_id, story_id, file_id, name, path, size_bytes, created_at
		FROM downloads WHERE story_id = ? AND file_id = ?
	`, storyID, fileID)

	d, err := r.scanOne(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: download %s/%s", ErrNotFound, storyID, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query download: %w", err)
	}
	return d, nil
}

// ListByStory returns every download of storyID ordered by file name.
func (r *DownloadRepository) ListByStory(storyID string) ([]*models.Download, error) {
	rows, err := r.db.Query(`
		SELECT id, run_id, story_id, file_id, name, path, size_bytes, created_at
		FROM downloads WHERE story_id = ? ORDER BY name
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*models.Download
	for rows.Next() {
		d, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// DeleteStory removes every download row of storyID and reports how many were removed.
func (r *DownloadRepository) DeleteStory(storyID string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM downloads WHERE story_id = ?`, storyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete downloads: %w", err)
	}
	return res.RowsAffected()
}

func (r *DownloadRepository) scanOne(row *sql.Row) (*models.Download, error) {
	var d models.Download
	if err := row.Scan(&d.ID, &d.RunID, &d.StoryID, &d.FileID, &d.Name, &d.Path, &d.SizeBytes, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DownloadRepository) scanRow(rows *sql.Rows) (*models.Download, error) {
	var d models.Download
	if err := rows.Scan(&d.ID, &d.RunID, &d.StoryID, &d.FileID, &d.Name, &d.Path, &d.SizeBytes, &d.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}
	return &d, nil
}
