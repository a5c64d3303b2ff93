// Package database provides SQLite storage for the download history
package database

import (
	"database/sql"
	"fmt"
	"time"

	"ytgrab/pkg/models"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	// Add connection parameters to help with concurrent access
	connString := dbPath
	if dbPath != ":memory:" {
		connString = dbPath + "?_busy_timeout=30000&_journal_mode=WAL&_synchronous=NORMAL"
	}

	conn, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't handle concurrent writes well
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id TEXT NOT NULL,
		media_kind TEXT NOT NULL,
		strategy TEXT,
		file_path TEXT,
		file_size INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_video_id ON downloads(video_id);
	CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);
	CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// CreateDownload records a completed or failed download attempt
func (db *DB) CreateDownload(download *models.Download) error {
	query := `
	INSERT INTO downloads (
		video_id, media_kind, strategy, file_path, file_size,
		duration_ms, status, error_message, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		download.VideoID, download.MediaKind, download.Strategy,
		download.FilePath, download.FileSize, download.DurationMs,
		download.Status, download.ErrorMessage, download.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create download: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	download.ID = id
	return nil
}

// ListRecentDownloads returns the most recent download records
func (db *DB) ListRecentDownloads(limit int) ([]*models.Download, error) {
	query := `
	SELECT id, video_id, media_kind, strategy, file_path, file_size,
		   duration_ms, status, error_message, created_at
	FROM downloads
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*models.Download
	for rows.Next() {
		var download models.Download
		err := rows.Scan(
			&download.ID, &download.VideoID, &download.MediaKind,
			&download.Strategy, &download.FilePath, &download.FileSize,
			&download.DurationMs, &download.Status, &download.ErrorMessage,
			&download.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads = append(downloads, &download)
	}

	return downloads, rows.Err()
}

// CountDownloads returns the number of history records with the given status
func (db *DB) CountDownloads(status models.DownloadStatus) (int64, error) {
	var count int64
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM downloads WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return count, nil
}

// DeleteOldDownloads removes history records older than the retention period
func (db *DB) DeleteOldDownloads(retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	_, err := db.conn.Exec(`DELETE FROM downloads WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old downloads: %w", err)
	}

	return nil
}
