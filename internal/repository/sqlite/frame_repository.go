package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dashcam/internal/dto"
	"dashcam/internal/model"
)

const frameColumns = `id, uid, filename, camera, timestamp, filepath, filesize, luminance, dark`

// FrameRepository implements repository.FrameRepository for SQLite.
type FrameRepository struct {
	db *DB
}

// NewFrameRepository creates a new SQLite frame repository.
func NewFrameRepository(db *DB) *FrameRepository {
	return &FrameRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFrame(row rowScanner) (*model.Frame, error) {
	var f model.Frame
	if err := row.Scan(&f.ID, &f.UID, &f.Filename, &f.Camera, &f.Timestamp,
		&f.FilePath, &f.FileSize, &f.Luminance, &f.Dark); err != nil {
		return nil, err
	}
	return &f, nil
}

// Insert adds a new frame record. Timestamps are stored in UTC.
func (r *FrameRepository) Insert(frame *model.Frame) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO frames (uid, filename, camera, timestamp, filepath, filesize, luminance, dark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, frame.UID, frame.Filename, frame.Camera, frame.Timestamp.UTC(), frame.FilePath,
		frame.FileSize, frame.Luminance, frame.Dark)
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %w", err)
	}

	return result.LastInsertId()
}

// BulkInsert adds frames in one transaction, skipping filenames already in
// the catalog. It returns the number of rows inserted.
func (r *FrameRepository) BulkInsert(frames []model.Frame) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO frames (uid, filename, camera, timestamp, filepath, filesize, luminance, dark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, f := range frames {
		res, err := stmt.Exec(f.UID, f.Filename, f.Camera, f.Timestamp.UTC(), f.FilePath,
			f.FileSize, f.Luminance, f.Dark)
		if err != nil {
			return 0, fmt.Errorf("failed to insert frame %s: %w", f.Filename, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit frames: %w", err)
	}
	return inserted, nil
}

// GetByID retrieves a frame by its ID.
func (r *FrameRepository) GetByID(id int64) (*model.Frame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	f, err := scanFrame(r.db.Conn().QueryRow(`SELECT `+frameColumns+` FROM frames WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	return f, nil
}

// GetByFilename retrieves a frame by its filename.
func (r *FrameRepository) GetByFilename(filename string) (*model.Frame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	f, err := scanFrame(r.db.Conn().QueryRow(`SELECT `+frameColumns+` FROM frames WHERE filename = ?`, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	return f, nil
}

// filterClause builds the WHERE clause shared by listing and counting.
func filterClause(filter *dto.FrameFilters) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(" WHERE 1=1")
	args := []interface{}{}
	if filter == nil {
		return sb.String(), args
	}

	if filter.Camera != "" {
		sb.WriteString(" AND camera = ?")
		args = append(args, filter.Camera)
	}

	switch filter.Verdict {
	case dto.VerdictDark:
		sb.WriteString(" AND dark = 1")
	case dto.VerdictBright:
		sb.WriteString(" AND dark = 0")
	}

	if !filter.DateAfter.IsZero() {
		sb.WriteString(" AND DATE(timestamp) >= DATE(?)")
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		sb.WriteString(" AND DATE(timestamp) <= DATE(?)")
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	if !filter.TimeAfter.IsZero() {
		sb.WriteString(" AND TIME(timestamp) >= TIME(?)")
		args = append(args, filter.TimeAfter.Format("15:04:05"))
	}

	if !filter.TimeBefore.IsZero() {
		sb.WriteString(" AND TIME(timestamp) <= TIME(?)")
		args = append(args, filter.TimeBefore.Format("15:04:05"))
	}

	return sb.String(), args
}

// GetAll retrieves frames based on filter criteria, newest first.
func (r *FrameRepository) GetAll(filter *dto.FrameFilters) ([]model.Frame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `SELECT ` + frameColumns + ` FROM frames` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []model.Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, *f)
	}

	return frames, rows.Err()
}

// GetTotalCount returns the number of frames matching the filter, ignoring
// limit and offset.
func (r *FrameRepository) GetTotalCount(filter *dto.FrameFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM frames`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}

	return count, nil
}

// GetCameras returns a list of unique camera names.
func (r *FrameRepository) GetCameras() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT camera FROM frames ORDER BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []string
	for rows.Next() {
		var camera string
		if err := rows.Scan(&camera); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, camera)
	}
	return cameras, rows.Err()
}

// GetStats returns totals over the whole catalog.
func (r *FrameRepository) GetStats() (*model.FrameStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.FrameStats{PerCamera: make(map[string]int)}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(dark), 0), COALESCE(SUM(filesize), 0) FROM frames
	`).Scan(&stats.TotalFrames, &stats.DarkFrames, &stats.TotalSizeBytes); err != nil {
		return nil, fmt.Errorf("failed to read frame totals: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT camera, COUNT(*) FROM frames GROUP BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to query camera totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var camera string
		var count int
		if err := rows.Scan(&camera, &count); err != nil {
			return nil, fmt.Errorf("failed to scan camera totals: %w", err)
		}
		stats.PerCamera[camera] = count
	}

	return stats, rows.Err()
}

// DeleteByFilename removes a frame by its filename. Unknown names are not
// an error.
func (r *FrameRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM frames WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete frame: %w", err)
	}
	return nil
}

// DeleteAll removes every frame record.
func (r *FrameRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM frames`); err != nil {
		return fmt.Errorf("failed to delete frames: %w", err)
	}
	return nil
}
