// Package profile persists interpreter profiles in SQLite: per-run opcode
// histograms and method invocation counts.
package profile

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chazu/dexvm/vm"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one profiled execution.
type Run struct {
	ID       uuid.UUID
	Entry    string
	Started  time.Time
	Duration time.Duration
	Opcodes  map[string]uint64
	Methods  map[string]uint64
}

// FromProfiler captures a profiler's counters as a new run.
func FromProfiler(entry string, started time.Time, p *vm.Profiler) *Run {
	snap := p.Snapshot()
	return &Run{
		ID:       uuid.New(),
		Entry:    entry,
		Started:  started,
		Duration: time.Since(started),
		Opcodes:  snap.Opcodes,
		Methods:  snap.Methods,
	}
}

// Count is a named counter.
type Count struct {
	Name  string
	Count uint64
}

// Store is a profile database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       TEXT PRIMARY KEY,
	entry    TEXT NOT NULL,
	started  INTEGER NOT NULL,
	duration INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS opcode_counts (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	opcode TEXT NOT NULL,
	count  INTEGER NOT NULL,
	PRIMARY KEY (run_id, opcode)
);
CREATE TABLE IF NOT EXISTS method_counts (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	method TEXT NOT NULL,
	count  INTEGER NOT NULL,
	PRIMARY KEY (run_id, method)
);`

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores a run and its counters, replacing any run with the same ID.
func (s *Store) Save(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	defer tx.Rollback()

	id := run.ID.String()
	for _, table := range []string{"opcode_counts", "method_counts"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
	}
	_, err = tx.Exec(
		"INSERT OR REPLACE INTO runs (id, entry, started, duration) VALUES (?, ?, ?, ?)",
		id, run.Entry, run.Started.UnixNano(), int64(run.Duration),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	if err := insertCounts(tx, "INSERT INTO opcode_counts (run_id, opcode, count) VALUES (?, ?, ?)", id, run.Opcodes); err != nil {
		return err
	}
	if err := insertCounts(tx, "INSERT INTO method_counts (run_id, method, count) VALUES (?, ?, ?)", id, run.Methods); err != nil {
		return err
	}
	return tx.Commit()
}

func insertCounts(tx *sql.Tx, query, id string, counts map[string]uint64) error {
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("saving counts: %w", err)
	}
	defer stmt.Close()
	for name, n := range counts {
		if _, err := stmt.Exec(id, name, int64(n)); err != nil {
			return fmt.Errorf("saving count %s: %w", name, err)
		}
	}
	return nil
}

// Load retrieves a run with its counters.
func (s *Store) Load(id uuid.UUID) (*Run, error) {
	run := &Run{ID: id}
	var started, duration int64
	err := s.db.QueryRow("SELECT entry, started, duration FROM runs WHERE id = ?", id.String()).
		Scan(&run.Entry, &started, &duration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	run.Started = time.Unix(0, started)
	run.Duration = time.Duration(duration)

	if run.Opcodes, err = s.counts("SELECT opcode, count FROM opcode_counts WHERE run_id = ?", id.String()); err != nil {
		return nil, err
	}
	if run.Methods, err = s.counts("SELECT method, count FROM method_counts WHERE run_id = ?", id.String()); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) counts(query string, args ...any) (map[string]uint64, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying counts: %w", err)
	}
	defer rows.Close()

	out := map[string]uint64{}
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning counts: %w", err)
		}
		out[name] = uint64(n)
	}
	return out, rows.Err()
}

// Runs lists stored runs, oldest first, without their counters.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, entry, started, duration FROM runs ORDER BY started, id")
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var id string
		var started, duration int64
		var r Run
		if err := rows.Scan(&id, &r.Entry, &started, &duration); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		r.Started = time.Unix(0, started)
		r.Duration = time.Duration(duration)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run and its counters.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	for _, table := range []string{"opcode_counts", "method_counts"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", id.String()); err != nil {
			return fmt.Errorf("deleting run: %w", err)
		}
	}
	return tx.Commit()
}

// HottestMethods sums invocation counts across all runs and returns the
// top limit methods, most invoked first.
func (s *Store) HottestMethods(limit int) ([]Count, error) {
	rows, err := s.db.Query(
		"SELECT method, SUM(count) AS total FROM method_counts GROUP BY method ORDER BY total DESC, method LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying methods: %w", err)
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		var n int64
		if err := rows.Scan(&c.Name, &n); err != nil {
			return nil, fmt.Errorf("scanning methods: %w", err)
		}
		c.Count = uint64(n)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SortedOpcodes returns a run's opcode counts, most frequent first.
func (r *Run) SortedOpcodes() []Count {
	out := make([]Count, 0, len(r.Opcodes))
	for name, n := range r.Opcodes {
		out = append(out, Count{name, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
