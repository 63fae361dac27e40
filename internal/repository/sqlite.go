package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-saferoute/internal/models"
)

const defaultListLimit = 50

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS selections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			disaster_type TEXT NOT NULL,
			origin_latitude REAL NOT NULL,
			origin_longitude REAL NOT NULL,
			facility_id TEXT NOT NULL,
			facility_name TEXT,
			category TEXT,
			distance_meters REAL,
			score INTEGER NOT NULL,
			priority TEXT NOT NULL,
			source TEXT NOT NULL,
			reasoning TEXT,
			route_points INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			UNIQUE (session_id, generation)
		);

		CREATE INDEX IF NOT EXISTS idx_selections_session ON selections(session_id);
		CREATE INDEX IF NOT EXISTS idx_selections_created_at ON selections(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) AddSelection(ctx context.Context, sel *models.Selection) error {
	var distance sql.NullFloat64
	if sel.DistanceMeters != nil {
		distance = sql.NullFloat64{Float64: *sel.DistanceMeters, Valid: true}
	}
	createdAt := sel.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO selections (
			session_id, generation, disaster_type, origin_latitude, origin_longitude,
			facility_id, facility_name, category, distance_meters, score, priority,
			source, reasoning, route_points, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sel.SessionID, sel.Generation, sel.DisasterType, sel.Origin.Latitude, sel.Origin.Longitude,
		sel.FacilityID, sel.FacilityName, string(sel.Category), distance, sel.Score, string(sel.Priority),
		string(sel.Source), sel.Reasoning, sel.RoutePoints, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting selection: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		sel.ID = id
	}
	return nil
}

func (s *SQLiteDB) ListSelections(ctx context.Context, opts Filter) ([]models.Selection, error) {
	var (
		where []string
		args  []any
	)
	if opts.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	if opts.DisasterType != "" {
		where = append(where, "disaster_type = ?")
		args = append(args, opts.DisasterType)
	}
	if opts.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(opts.Source))
	}
	if opts.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	query := `
		SELECT id, session_id, generation, disaster_type, origin_latitude, origin_longitude,
			facility_id, facility_name, category, distance_meters, score, priority,
			source, reasoning, route_points, created_at
		FROM selections`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying selections: %w", err)
	}
	defer rows.Close()

	var out []models.Selection
	for rows.Next() {
		var (
			sel                       models.Selection
			name, category, reasoning sql.NullString
			priority, source          string
			distance                  sql.NullFloat64
		)
		if err := rows.Scan(
			&sel.ID, &sel.SessionID, &sel.Generation, &sel.DisasterType,
			&sel.Origin.Latitude, &sel.Origin.Longitude,
			&sel.FacilityID, &name, &category, &distance, &sel.Score, &priority,
			&source, &reasoning, &sel.RoutePoints, &sel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning selection: %w", err)
		}
		sel.FacilityName = name.String
		sel.Category = models.Category(category.String)
		sel.Reasoning = reasoning.String
		sel.Priority = models.Priority(priority)
		sel.Source = models.RecommendationSource(source)
		if distance.Valid {
			d := distance.Float64
			sel.DistanceMeters = &d
		}
		out = append(out, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating selections: %w", err)
	}

	return out, nil
}

func (s *SQLiteDB) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM selections WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("error deleting selections: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
