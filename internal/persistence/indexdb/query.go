package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"antventure.ai/internal/sim/colony"
)

// RunRow is a run as listed by Runs.
type RunRow struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Strategy  string          `json:"strategy"`
	Policy    string          `json:"policy"`
	N         int             `json:"n"`
	Nf        int             `json:"nf"`
	NSims     int             `json:"n_sims"`
	Seed      uint64          `json:"seed"`
	Digest    string          `json:"digest"`
	Rows      int             `json:"rows"`
	Message   string          `json:"message"`
	TablePath string          `json:"table_path,omitempty"`
	Params    json.RawMessage `json:"params"`
}

// Runs lists the most recent runs first. limit <= 0 means 50.
func (s *SQLiteIndex) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	return QueryRuns(ctx, s.db, limit)
}

// Samples returns the stored rows of one run in repetition then time order.
func (s *SQLiteIndex) Samples(ctx context.Context, runID string) ([]colony.Sample, error) {
	return QuerySamples(ctx, s.db, runID)
}

// QueryRuns works on any handle to an index database, e.g. a read-only one opened by a
// tool while a simulator holds the writer.
func QueryRuns(ctx context.Context, db *sql.DB, limit int) ([]RunRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT run_id,created_at,strategy,policy,n,nf,n_sims,seed,digest,rows,message,COALESCE(table_path,''),params_json
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var (
			r       RunRow
			created string
			seed    int64
			params  string
		)
		if err := rows.Scan(&r.RunID, &created, &r.Strategy, &r.Policy, &r.N, &r.Nf, &r.NSims, &seed, &r.Digest, &r.Rows, &r.Message, &r.TablePath, &params); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: created_at: %w", r.RunID, err)
		}
		r.Seed = uint64(seed)
		r.Params = json.RawMessage(params)
		out = append(out, r)
	}
	return out, rows.Err()
}

func QuerySamples(ctx context.Context, db *sql.DB, runID string) ([]colony.Sample, error) {
	rows, err := db.QueryContext(ctx, `SELECT repetition,time,fed,inside,outside,source,informed
		FROM samples WHERE run_id=? ORDER BY repetition, time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []colony.Sample
	for rows.Next() {
		var sm colony.Sample
		if err := rows.Scan(&sm.Repetition, &sm.Time, &sm.Fed, &sm.Inside, &sm.Outside, &sm.Source, &sm.Informed); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// OpenReadOnly opens an existing index for queries only.
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
