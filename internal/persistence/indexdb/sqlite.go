package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of runs and their sampled rows. Writes are
// queued to a single writer goroutine and batched into transactions; the archived CSV and
// sample logs stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun    atomic.Uint64
	dropSample atomic.Uint64
	writeErr   atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqSample
	reqSync
)

type req struct {
	kind reqKind

	run    RunRecord
	runID  string
	sample colony.Sample
	done   chan struct{}
}

// RunRecord is the row stored for one completed run.
type RunRecord struct {
	RunID     string
	CreatedAt time.Time
	Params    calib.Params
	Constants calib.Constants
	Seed      uint64
	Digest    string
	Rows      int
	Message   string
	TablePath string
}

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropRunTotal    uint64
	DropSampleTotal uint64
	WriteErrTotal   uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Large runs emit n_sims*(time_sim/10+1) rows in a burst.
		ch: make(chan req, 262144),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tuning (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			strategy TEXT NOT NULL,
			policy TEXT NOT NULL,
			n INTEGER NOT NULL,
			nf INTEGER NOT NULL,
			distance REAL NOT NULL,
			terrain REAL NOT NULL,
			time_sim INTEGER NOT NULL,
			viscosity REAL,
			sugar REAL,
			n_sims INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			digest TEXT NOT NULL,
			rows INTEGER NOT NULL,
			message TEXT NOT NULL,
			table_path TEXT,
			params_json TEXT NOT NULL,
			constants_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
		`CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL,
			repetition INTEGER NOT NULL,
			time INTEGER NOT NULL,
			fed REAL NOT NULL,
			inside INTEGER NOT NULL,
			outside INTEGER NOT NULL,
			source INTEGER NOT NULL,
			informed INTEGER NOT NULL,
			PRIMARY KEY (run_id, repetition, time)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRun queues a completed run. It never blocks; the row is dropped if the writer is
// saturated.
func (s *SQLiteIndex) RecordRun(r RunRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

// WriteSample queues one row of a run table.
func (s *SQLiteIndex) WriteSample(runID string, sample colony.Sample) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqSample, runID: runID, sample: sample}:
	default:
		s.dropSample.Add(1)
	}
	return nil
}

// Sync blocks until everything queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropRunTotal:    s.dropRun.Load(),
		DropSampleTotal: s.dropSample.Load(),
		WriteErrTotal:   s.writeErr.Load(),
	}
}

// UpsertTuning stores the constants a run was simulated with, keyed by their digest.
func (s *SQLiteIndex) UpsertTuning(tu tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tu)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	_, err = s.db.Exec(`INSERT OR REPLACE INTO tuning(digest,json,updated_at) VALUES(?,?,?)`,
		digest, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", err
	}
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('tuning_digest',?)`, digest); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,created_at,strategy,policy,n,nf,distance,terrain,time_sim,viscosity,sugar,n_sims,seed,digest,rows,message,table_path,params_json,constants_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSample, _ := s.db.Prepare(`INSERT OR REPLACE INTO samples(run_id,repetition,time,fed,inside,outside,source,informed) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertSample != nil {
			_ = insertSample.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErr.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErr.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErr.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var (
			r  req
			ok bool
		)
		select {
		case r, ok = <-s.ch:
		case <-idle.C:
			// Nothing arrived for a while; don't keep readers waiting on an open tx.
			flushIfNeeded()
			continue
		}
		if !ok {
			break
		}
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			if insertRun == nil {
				continue
			}
			if err := execRun(tx.Stmt(insertRun), r.run); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSample:
			if insertSample == nil {
				continue
			}
			sm := r.sample
			if _, err := tx.Stmt(insertSample).Exec(
				r.runID,
				sm.Repetition,
				sm.Time,
				sm.Fed,
				sm.Inside,
				sm.Outside,
				sm.Source,
				sm.Informed,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}

func execRun(stmt *sql.Stmt, r RunRecord) error {
	p := r.Params
	params, err := json.Marshal(p)
	if err != nil {
		return err
	}
	consts, err := json.Marshal(r.Constants)
	if err != nil {
		return err
	}
	var visco, sugar sql.NullFloat64
	if p.Viscosity != nil {
		visco = sql.NullFloat64{Float64: *p.Viscosity, Valid: true}
	}
	if p.Sugar != nil {
		sugar = sql.NullFloat64{Float64: *p.Sugar, Valid: true}
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = stmt.Exec(
		r.RunID,
		created.UTC().Format(time.RFC3339Nano),
		p.Strategy.String(),
		p.Policy.String(),
		p.N,
		p.Nf,
		p.Distance,
		p.Terrain,
		p.TimeSim,
		visco,
		sugar,
		p.NSims,
		int64(r.Seed),
		r.Digest,
		r.Rows,
		r.Message,
		r.TablePath,
		string(params),
		string(consts),
	)
	return err
}
