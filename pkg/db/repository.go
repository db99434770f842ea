package db

import (
	"database/sql"
	"log/slog"

	"github.com/amiup/amiup/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for the publication journal
type Repository struct {
	db *sql.DB
}

// NewRepository opens the journal database, creating the schema if needed
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Record inserts one publication row
func (r *Repository) Record(p *Publication) error {
	query := `
		INSERT INTO publications (execution_id, image_name, snapshot_id, region, image_id)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query, p.ExecutionID, p.ImageName, p.SnapshotID, p.Region, p.ImageID)
	if err != nil {
		slog.Error("database_insert_failed", "image_name", p.ImageName, "region", p.Region, "error", err)
		return errors.Wrap(err, "failed to insert publication")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get last insert id")
	}
	p.ID = id

	slog.Info("database_publication_recorded", "image_name", p.ImageName, "region", p.Region, "image_id", p.ImageID)
	return nil
}

// List retrieves all publications, newest first
func (r *Repository) List() ([]*Publication, error) {
	query := `
		SELECT id, execution_id, image_name, snapshot_id, region, image_id, created_at
		FROM publications ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list publications")
	}
	defer rows.Close()

	var pubs []*Publication
	for rows.Next() {
		var p Publication
		if err := rows.Scan(&p.ID, &p.ExecutionID, &p.ImageName, &p.SnapshotID, &p.Region, &p.ImageID, &p.CreatedAt); err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		pubs = append(pubs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return pubs, nil
}

// ListByImageName retrieves publications for one logical image name
func (r *Repository) ListByImageName(name string) ([]*Publication, error) {
	query := `
		SELECT id, execution_id, image_name, snapshot_id, region, image_id, created_at
		FROM publications WHERE image_name = ? ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(query, name)
	if err != nil {
		slog.Error("database_list_query_failed", "image_name", name, "error", err)
		return nil, errors.Wrap(err, "failed to list publications")
	}
	defer rows.Close()

	var pubs []*Publication
	for rows.Next() {
		var p Publication
		if err := rows.Scan(&p.ID, &p.ExecutionID, &p.ImageName, &p.SnapshotID, &p.Region, &p.ImageID, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		pubs = append(pubs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return pubs, nil
}
