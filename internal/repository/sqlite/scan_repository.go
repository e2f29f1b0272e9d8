package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"brickscan/internal/dto"
	"brickscan/internal/model"
)

const scanColumns = `s.id, s.filename, s.timestamp, s.filepath, s.filesize,
	s.roi_x, s.roi_y, s.roi_width, s.roi_height, s.sensitivity`

// ScanRepository implements repository.ScanRepository for SQLite.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new SQLite scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Insert adds a new scan record to the database.
func (r *ScanRepository) Insert(scan *model.Scan) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO scans (filename, timestamp, filepath, filesize, roi_x, roi_y, roi_width, roi_height, sensitivity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.Filename, scan.Timestamp, scan.FilePath, scan.FileSize,
		scan.X, scan.Y, scan.Width, scan.Height, scan.Sensitivity)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	return result.LastInsertId()
}

func scanRow(row interface{ Scan(...interface{}) error }, s *model.Scan) error {
	return row.Scan(&s.ID, &s.Filename, &s.Timestamp, &s.FilePath, &s.FileSize,
		&s.X, &s.Y, &s.Width, &s.Height, &s.Sensitivity)
}

// GetByID retrieves a scan by its ID. A missing scan yields nil, nil.
func (r *ScanRepository) GetByID(id int64) (*model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var scan model.Scan
	err := scanRow(r.db.Conn().QueryRow(`SELECT `+scanColumns+` FROM scans s WHERE s.id = ?`, id), &scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &scan, nil
}

// GetByFilename retrieves a scan by its filename. A missing scan yields nil, nil.
func (r *ScanRepository) GetByFilename(filename string) (*model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var scan model.Scan
	err := scanRow(r.db.Conn().QueryRow(`SELECT `+scanColumns+` FROM scans s WHERE s.filename = ?`, filename), &scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &scan, nil
}

// whereClause builds the filter part shared by GetAll and GetTotalCount.
func whereClause(filter *dto.ScanFilters) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Label != "" {
		query += " AND EXISTS (SELECT 1 FROM predictions p WHERE p.scan_id = s.id AND p.label = ?)"
		args = append(args, filter.Label)
	}

	// timestamps carry their zone offset; julianday compares instants
	if !filter.DateAfter.IsZero() {
		query += " AND julianday(s.timestamp) >= julianday(?)"
		args = append(args, startOfDay(filter.DateAfter))
	}

	if !filter.DateBefore.IsZero() {
		query += " AND julianday(s.timestamp) < julianday(?)"
		args = append(args, startOfDay(filter.DateBefore).AddDate(0, 0, 1))
	}

	return query, args
}

// startOfDay is midnight of t's calendar day in t's own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// GetAll retrieves scans matching the filter, newest first.
func (r *ScanRepository) GetAll(filter *dto.ScanFilters) ([]model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT ` + scanColumns + ` FROM scans s` + where + ` ORDER BY julianday(s.timestamp) DESC, s.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		var scan model.Scan
		if err := scanRow(rows, &scan); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}

	return scans, rows.Err()
}

// GetTotalCount returns the number of scans matching the filter, ignoring pagination.
func (r *ScanRepository) GetTotalCount(filter *dto.ScanFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM scans s`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// GetTotalSize returns the summed file size of all stored scans.
func (r *ScanRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM scans`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum scan sizes: %w", err)
	}
	return size, nil
}

// Delete removes a scan and its predictions.
func (r *ScanRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM predictions WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM scans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return nil
}

// DeleteByFilename removes a scan by its filename. Unknown names are ignored.
func (r *ScanRepository) DeleteByFilename(filename string) error {
	scan, err := r.GetByFilename(filename)
	if err != nil {
		return err
	}
	if scan == nil {
		return nil
	}
	return r.Delete(scan.ID)
}

// DeleteAll removes all scans and their predictions.
func (r *ScanRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM scans`); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}
	return nil
}
