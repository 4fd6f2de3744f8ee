package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/onemotre/MapPOI/pkg/harvest"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS queries (
	run_id      TEXT NOT NULL,
	region      TEXT NOT NULL,
	category    TEXT NOT NULL,
	state       TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	records     INTEGER NOT NULL,
	pages       INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	finished_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, region, category)
);

CREATE TABLE IF NOT EXISTS pois (
	run_id         TEXT NOT NULL,
	region         TEXT NOT NULL,
	category       TEXT NOT NULL,
	idx            INTEGER NOT NULL,
	name           TEXT NOT NULL,
	lng            REAL NOT NULL,
	lat            REAL NOT NULL,
	province       TEXT NOT NULL,
	city           TEXT NOT NULL,
	district       TEXT NOT NULL,
	location       TEXT NOT NULL,
	category_major TEXT NOT NULL,
	category_mid   TEXT NOT NULL,
	category_sub   TEXT NOT NULL,
	rating         TEXT NOT NULL,
	parking_type   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, region, category, idx)
);
`

// SQLiteSink mirrors results into a SQLite database, keyed by run ID.
// Storing the same query twice within a run replaces its rows.
type SQLiteSink struct {
	db     *sql.DB
	path   string
	runID  string
	logger zerolog.Logger
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path, runID string, logger zerolog.Logger) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single writer; workers serialize on the connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteSink{
		db:     db,
		path:   path,
		runID:  runID,
		logger: logger.With().Str("component", "sqlite-sink").Logger(),
	}, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string {
	return s.path
}

// Store implements Sink.
func (s *SQLiteSink) Store(ctx context.Context, res harvest.Result) error {
	// Partial results are kept on shutdown.
	ctx = context.WithoutCancel(ctx)

	if err := s.store(ctx, res); err != nil {
		return &Error{Path: s.path, Err: err}
	}
	s.logger.Debug().
		Str("query", res.Query.String()).
		Int("records", res.Len()).
		Msg("Result stored")
	return nil
}

func (s *SQLiteSink) store(ctx context.Context, res harvest.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q := res.Query
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pois WHERE run_id = ? AND region = ? AND category = ?`,
		s.runID, q.Region, q.Category); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO queries (run_id, region, category, state, reason, records, pages, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, region, category) DO UPDATE SET
			state = excluded.state, reason = excluded.reason, records = excluded.records,
			pages = excluded.pages, error = excluded.error, finished_at = excluded.finished_at`,
		s.runID, q.Region, q.Category, res.State.String(), string(res.Reason),
		res.Len(), res.Pages, errText, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert query: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pois (run_id, region, category, idx, name, lng, lat, province, city, district,
			location, category_major, category_mid, category_sub, rating, parking_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range res.Records {
		if _, err := stmt.ExecContext(ctx,
			s.runID, q.Region, q.Category, r.Index, r.Name, r.Lng, r.Lat,
			r.Province, r.City, r.District, r.Location,
			r.CategoryMajor, r.CategoryMid, r.CategorySub, r.Rating, r.ParkingType); err != nil {
			return fmt.Errorf("insert record %d: %w", r.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of stored records of q in this run.
func (s *SQLiteSink) Count(ctx context.Context, q query.Query) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pois WHERE run_id = ? AND region = ? AND category = ?`,
		s.runID, q.Region, q.Category).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// QueryState returns the stored terminal state and reason of q in this run.
func (s *SQLiteSink) QueryState(ctx context.Context, q query.Query) (state, reason string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT state, reason FROM queries WHERE run_id = ? AND region = ? AND category = ?`,
		s.runID, q.Region, q.Category).Scan(&state, &reason)
	if err != nil {
		return "", "", fmt.Errorf("query state: %w", err)
	}
	return state, reason, nil
}
