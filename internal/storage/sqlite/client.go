package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/storage/models"
	"github.com/leakscope/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parser TEXT NOT NULL,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'new',
		description TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_parser ON incidents(parser);
	CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at);

	CREATE TABLE IF NOT EXISTS triage_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		sources INTEGER NOT NULL,
		found INTEGER NOT NULL,
		confirmed INTEGER NOT NULL,
		needs_review INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		source_errors INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON triage_runs(started_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertIncidents writes one batch of incidents in a single transaction.
func (c *Client) InsertIncidents(incidents []models.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO incidents (parser, type, source, status, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, incident := range incidents {
		_, err := stmt.Exec(
			incident.Parser,
			incident.Type,
			incident.Source,
			models.NormalizeStatus(incident.Status),
			incident.Description,
			incident.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert incident: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit incidents: %w", err)
	}

	logger.Debug("Incidents inserted", zap.Int("count", len(incidents)))
	return nil
}

func (c *Client) ListIncidents(status string, limit int) ([]models.Incident, error) {
	query := `
		SELECT id, parser, type, source, status, description, created_at
		FROM incidents
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		var incident models.Incident
		var createdAt int64

		err := rows.Scan(
			&incident.ID,
			&incident.Parser,
			&incident.Type,
			&incident.Source,
			&incident.Status,
			&incident.Description,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		incident.CreatedAt = time.Unix(createdAt, 0)
		incidents = append(incidents, incident)
	}

	return incidents, rows.Err()
}

func (c *Client) InsertTriageRun(run *models.TriageRun) error {
	query := `
		INSERT INTO triage_runs (id, status, sources, found, confirmed, needs_review, rejected, source_errors, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		run.ID,
		run.Status,
		run.Sources,
		run.Found,
		run.Confirmed,
		run.NeedsReview,
		run.Rejected,
		run.SourceErrors,
		run.StartedAt.Unix(),
		run.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert triage run: %w", err)
	}

	return nil
}

func (c *Client) GetTriageRun(id string) (*models.TriageRun, error) {
	query := `
		SELECT id, status, sources, found, confirmed, needs_review, rejected, source_errors, started_at, duration_ms
		FROM triage_runs WHERE id = ?
	`

	var run models.TriageRun
	var startedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&run.ID,
		&run.Status,
		&run.Sources,
		&run.Found,
		&run.Confirmed,
		&run.NeedsReview,
		&run.Rejected,
		&run.SourceErrors,
		&startedAt,
		&run.DurationMS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get triage run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0)
	return &run, nil
}
