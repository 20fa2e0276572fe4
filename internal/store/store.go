package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"segmenter/internal/core"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "segmenter.db"

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Store persists analysis runs in SQLite
type Store struct {
	db   *sql.DB
	path string
}

// SweepRow is one evaluated K of a run.
type SweepRow struct {
	K          int
	Inertia    float64
	Silhouette *float64
}

// AssignmentRow is the pair of labels given to one customer.
type AssignmentRow struct {
	CustomerID int
	KMeans     int
	DBSCAN     core.Label
}

// Run is a complete persisted analysis.
type Run struct {
	core.RunSummary
	Sweep       []SweepRow
	Assignments []AssignmentRow
	Profiles    map[string][]core.ClusterProfile // keyed by algorithm
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		dataset TEXT,
		records INTEGER,
		k INTEGER,
		elbow_found BOOLEAN,
		seed INTEGER,
		eps REAL,
		min_samples INTEGER,
		inertia REAL,
		silhouette REAL,
		dbscan_clusters INTEGER,
		noise_count INTEGER
	);`

	sweepTable := `
	CREATE TABLE IF NOT EXISTS sweep_points (
		run_id TEXT NOT NULL,
		k INTEGER NOT NULL,
		inertia REAL,
		silhouette REAL,
		PRIMARY KEY (run_id, k),
		FOREIGN KEY (run_id) REFERENCES runs (id)
	);`

	// dbscan is NULL for noise.
	assignmentsTable := `
	CREATE TABLE IF NOT EXISTS assignments (
		run_id TEXT NOT NULL,
		customer_id INTEGER NOT NULL,
		kmeans INTEGER NOT NULL,
		dbscan INTEGER,
		PRIMARY KEY (run_id, customer_id),
		FOREIGN KEY (run_id) REFERENCES runs (id)
	);`

	profilesTable := `
	CREATE TABLE IF NOT EXISTS profiles (
		run_id TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		label INTEGER NOT NULL,
		size INTEGER,
		share REAL,
		means TEXT,
		male_share REAL,
		PRIMARY KEY (run_id, algorithm, label),
		FOREIGN KEY (run_id) REFERENCES runs (id)
	);`

	tables := []string{runsTable, sweepTable, assignmentsTable, profilesTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at)"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveRun stores a run and all its rows in one transaction, assigning an id
// and timestamp when they are unset. It returns the run id.
func (s *Store) SaveRun(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
	INSERT INTO runs
	(id, created_at, dataset, records, k, elbow_found, seed, eps, min_samples, inertia, silhouette, dbscan_clusters, noise_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC(),
		run.Dataset,
		run.Records,
		run.K,
		run.ElbowFound,
		run.Seed,
		run.Eps,
		run.MinSamples,
		run.Inertia,
		nullFloat(run.Silhouette),
		run.DBSCANCount,
		run.NoiseCount,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, p := range run.Sweep {
		if _, err := tx.Exec("INSERT INTO sweep_points (run_id, k, inertia, silhouette) VALUES (?, ?, ?, ?)",
			run.ID, p.K, p.Inertia, nullFloat(p.Silhouette)); err != nil {
			return "", fmt.Errorf("failed to insert sweep point k=%d: %w", p.K, err)
		}
	}

	stmt, err := tx.Prepare("INSERT INTO assignments (run_id, customer_id, kmeans, dbscan) VALUES (?, ?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare assignment insert: %w", err)
	}
	defer stmt.Close()
	for _, a := range run.Assignments {
		var dbscan sql.NullInt64
		if id, ok := a.DBSCAN.Cluster(); ok {
			dbscan = sql.NullInt64{Int64: int64(id), Valid: true}
		}
		if _, err := stmt.Exec(run.ID, a.CustomerID, a.KMeans, dbscan); err != nil {
			return "", fmt.Errorf("failed to insert assignment for customer %d: %w", a.CustomerID, err)
		}
	}

	for algorithm, profiles := range run.Profiles {
		for _, p := range profiles {
			means, err := json.Marshal(p.Mean)
			if err != nil {
				return "", fmt.Errorf("failed to encode profile means: %w", err)
			}
			if _, err := tx.Exec(`
			INSERT INTO profiles (run_id, algorithm, label, size, share, means, male_share)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, algorithm, p.Label.Int(), p.Size, p.Share, string(means), p.MaleShare); err != nil {
				return "", fmt.Errorf("failed to insert %s profile %s: %w", algorithm, p.Label, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

const summaryColumns = `id, created_at, dataset, records, k, elbow_found, seed, eps, min_samples, inertia, silhouette, dbscan_clusters, noise_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (core.RunSummary, error) {
	var r core.RunSummary
	var silhouette sql.NullFloat64
	err := row.Scan(&r.ID, &r.CreatedAt, &r.Dataset, &r.Records, &r.K, &r.ElbowFound, &r.Seed,
		&r.Eps, &r.MinSamples, &r.Inertia, &silhouette, &r.DBSCANCount, &r.NoiseCount)
	if err != nil {
		return r, err
	}
	if silhouette.Valid {
		v := silhouette.Float64
		r.Silhouette = &v
	}
	return r, nil
}

// ListRuns returns the most recent run summaries, newest first. A limit of 0 returns all runs.
func (s *Store) ListRuns(limit int) ([]core.RunSummary, error) {
	query := "SELECT " + summaryColumns + " FROM runs ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []core.RunSummary
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads a run with its sweep, assignments and profiles.
func (s *Store) GetRun(id string) (*Run, error) {
	summary, err := scanSummary(s.db.QueryRow("SELECT "+summaryColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run := &Run{RunSummary: summary, Profiles: make(map[string][]core.ClusterProfile)}

	if err := s.loadSweep(run); err != nil {
		return nil, err
	}
	if err := s.loadAssignments(run); err != nil {
		return nil, err
	}
	if err := s.loadProfiles(run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) loadSweep(run *Run) error {
	rows, err := s.db.Query("SELECT k, inertia, silhouette FROM sweep_points WHERE run_id = ? ORDER BY k", run.ID)
	if err != nil {
		return fmt.Errorf("failed to load sweep: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p SweepRow
		var silhouette sql.NullFloat64
		if err := rows.Scan(&p.K, &p.Inertia, &silhouette); err != nil {
			return fmt.Errorf("failed to scan sweep point: %w", err)
		}
		if silhouette.Valid {
			v := silhouette.Float64
			p.Silhouette = &v
		}
		run.Sweep = append(run.Sweep, p)
	}
	return rows.Err()
}

func (s *Store) loadAssignments(run *Run) error {
	rows, err := s.db.Query("SELECT customer_id, kmeans, dbscan FROM assignments WHERE run_id = ? ORDER BY customer_id", run.ID)
	if err != nil {
		return fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a AssignmentRow
		var dbscan sql.NullInt64
		if err := rows.Scan(&a.CustomerID, &a.KMeans, &dbscan); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.DBSCAN = core.NoiseLabel()
		if dbscan.Valid {
			a.DBSCAN = core.ClusterLabel(int(dbscan.Int64))
		}
		run.Assignments = append(run.Assignments, a)
	}
	return rows.Err()
}

func (s *Store) loadProfiles(run *Run) error {
	rows, err := s.db.Query(`
	SELECT algorithm, label, size, share, means, male_share
	FROM profiles WHERE run_id = ?
	ORDER BY algorithm, CASE WHEN label < 0 THEN 1 ELSE 0 END, label`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var algorithm, means string
		var label int
		var p core.ClusterProfile
		if err := rows.Scan(&algorithm, &label, &p.Size, &p.Share, &means, &p.MaleShare); err != nil {
			return fmt.Errorf("failed to scan profile: %w", err)
		}
		if err := json.Unmarshal([]byte(means), &p.Mean); err != nil {
			return fmt.Errorf("failed to decode profile means: %w", err)
		}
		p.Label = core.NoiseLabel()
		if label >= 0 {
			p.Label = core.ClusterLabel(label)
		}
		run.Profiles[algorithm] = append(run.Profiles[algorithm], p)
	}
	return rows.Err()
}

// DeleteRun removes a run and all rows that belong to it.
func (s *Store) DeleteRun(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"sweep_points", "assignments", "profiles"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", table), id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return tx.Commit()
}

// Stats returns statistics about the store
func (s *Store) Stats() (*core.StoreStats, error) {
	stats := &core.StoreStats{}

	queries := map[string]*int{
		"SELECT COUNT(*) FROM runs":        &stats.RunCount,
		"SELECT COUNT(*) FROM assignments": &stats.AssignmentCount,
	}
	for query, target := range queries {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}

	var last time.Time
	err := s.db.QueryRow("SELECT created_at FROM runs ORDER BY created_at DESC LIMIT 1").Scan(&last)
	switch {
	case err == nil:
		stats.LastRun = last
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = fileInfo.Size()
	}

	return stats, nil
}

// Clear removes all runs
func (s *Store) Clear() error {
	tables := []string{"sweep_points", "assignments", "profiles", "runs"}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("failed to clear %s table: %w", table, err)
		}
	}

	// Vacuum to reclaim space
	_, err := s.db.Exec("VACUUM")
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
