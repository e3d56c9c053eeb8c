// Package sqlite persists finished thread trees into a SQLite database so
// they can be queried after the process exits.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"github.com/rs/zerolog"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id     INTEGER NOT NULL,
	label         TEXT    NOT NULL,
	total_samples INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scopes (
	run_id         INTEGER NOT NULL REFERENCES threads(id),
	position       INTEGER NOT NULL,
	parent         INTEGER,
	depth          INTEGER NOT NULL,
	name           TEXT    NOT NULL,
	path           TEXT    NOT NULL,
	samples        INTEGER NOT NULL,
	cpu_proportion REAL    NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS scopes_path ON scopes(path);
`

// ErrNotFound is returned by Load when no thread with the id was stored.
var ErrNotFound = errors.New("sqlite: thread not found")

var _ domain.Sink = (*Sink)(nil)

// Sink writes every finished thread in its own transaction. Scopes are
// stored in pre-order; parent refers to the parent's position.
type Sink struct {
	db     *sql.DB
	logger zerolog.Logger
}

// ScopeTotal aggregates one call path over every stored thread.
type ScopeTotal struct {
	Path          string
	Threads       int
	Samples       uint64
	AvgProportion float64
}

// Open opens (or creates) the database at dsn and applies the schema.
func Open(dsn string, logger zerolog.Logger) (*Sink, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases consistent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &Sink{
		db:     db,
		logger: logger.With().Str("component", "sqlite_sink").Logger(),
	}, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

func (s *Sink) HandleOutput(output *metrics.ThreadOutput) {
	if err := s.Save(context.Background(), output); err != nil {
		s.logger.Error().Err(err).Uint64("thread_id", output.ThreadID).Msg("Failed to persist thread output")
	}
}

// Save stores one thread output.
func (s *Sink) Save(ctx context.Context, output *metrics.ThreadOutput) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO threads (thread_id, label, total_samples, finished_at) VALUES (?, ?, ?, ?)`,
		int64(output.ThreadID), output.Label, int64(output.TotalSamples), output.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert thread: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read thread row id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scopes (run_id, position, parent, depth, name, path, samples, cpu_proportion)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare scope insert: %w", err)
	}
	defer stmt.Close()

	var (
		position int64
		parents  []int64
	)
	output.Walk(func(scope *metrics.ScopeOutput, depth int, ancestors []string) {
		if err != nil {
			return
		}
		parents = append(parents[:depth], position)

		var parent sql.NullInt64
		if depth > 0 {
			parent = sql.NullInt64{Int64: parents[depth-1], Valid: true}
		}

		_, err = stmt.ExecContext(ctx, runID, position, parent, depth, scope.Name,
			metrics.JoinPath(ancestors, scope.Name), int64(scope.Samples), scope.CPUProportion)
		position++
	})
	if err != nil {
		return fmt.Errorf("failed to insert scope: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thread output: %w", err)
	}
	return nil
}

// Load rebuilds the most recently stored output of threadID.
func (s *Sink) Load(ctx context.Context, threadID uint64) (*metrics.ThreadOutput, error) {
	var (
		runID      int64
		finishedAt int64
		total      int64
		output     = &metrics.ThreadOutput{ThreadID: threadID}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, total_samples, finished_at FROM threads WHERE thread_id = ? ORDER BY id DESC LIMIT 1`,
		int64(threadID)).Scan(&runID, &output.Label, &total, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	output.TotalSamples = uint64(total)
	output.FinishedAt = time.Unix(0, finishedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, parent, name, samples, cpu_proportion FROM scopes WHERE run_id = ? ORDER BY position`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scopes: %w", err)
	}
	defer rows.Close()

	byPosition := make(map[int64]*metrics.ScopeOutput)
	for rows.Next() {
		var (
			position int64
			parent   sql.NullInt64
			samples  int64
			scope    = &metrics.ScopeOutput{}
		)
		if err := rows.Scan(&position, &parent, &scope.Name, &samples, &scope.CPUProportion); err != nil {
			return nil, fmt.Errorf("failed to scan scope: %w", err)
		}
		scope.Samples = uint64(samples)
		byPosition[position] = scope

		if p, ok := byPosition[parent.Int64]; parent.Valid && ok {
			p.Children = append(p.Children, scope)
		} else {
			output.Scopes = append(output.Scopes, scope)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scopes: %w", err)
	}
	return output, nil
}

// TopScopes returns the call paths with the highest total samples across
// every stored thread.
func (s *Sink) TopScopes(ctx context.Context, limit int) ([]ScopeTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, COUNT(DISTINCT run_id), SUM(samples), AVG(cpu_proportion)
		   FROM scopes GROUP BY path ORDER BY SUM(samples) DESC, path LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top scopes: %w", err)
	}
	defer rows.Close()

	var totals []ScopeTotal
	for rows.Next() {
		var (
			total   ScopeTotal
			samples int64
		)
		if err := rows.Scan(&total.Path, &total.Threads, &samples, &total.AvgProportion); err != nil {
			return nil, fmt.Errorf("failed to scan scope total: %w", err)
		}
		total.Samples = uint64(samples)
		totals = append(totals, total)
	}
	return totals, rows.Err()
}
