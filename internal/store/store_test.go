package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"segmenter/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func floatPtr(v float64) *float64 { return &v }

func sampleRun() *Run {
	return &Run{
		RunSummary: core.RunSummary{
			Dataset:     "data/Mall_Customers.csv",
			Records:     3,
			K:           2,
			ElbowFound:  true,
			Seed:        42,
			Eps:         0.5,
			MinSamples:  5,
			Inertia:     12.75,
			Silhouette:  floatPtr(0.55),
			DBSCANCount: 1,
			NoiseCount:  1,
		},
		Sweep: []SweepRow{
			{K: 1, Inertia: 40},
			{K: 2, Inertia: 12.75, Silhouette: floatPtr(0.55)},
			{K: 3, Inertia: 10, Silhouette: floatPtr(0.31)},
		},
		Assignments: []AssignmentRow{
			{CustomerID: 1, KMeans: 0, DBSCAN: core.ClusterLabel(0)},
			{CustomerID: 2, KMeans: 0, DBSCAN: core.ClusterLabel(0)},
			{CustomerID: 3, KMeans: 1, DBSCAN: core.NoiseLabel()},
		},
		Profiles: map[string][]core.ClusterProfile{
			"kmeans": {
				{Label: core.ClusterLabel(0), Size: 2, Share: 2.0 / 3.0, Mean: []float64{20, 15, 60, 0.5}, MaleShare: 0.5},
				{Label: core.ClusterLabel(1), Size: 1, Share: 1.0 / 3.0, Mean: []float64{50, 90, 10, 1}, MaleShare: 1},
			},
			"dbscan": {
				{Label: core.NoiseLabel(), Size: 1, Share: 1.0 / 3.0, Mean: []float64{50, 90, 10, 1}, MaleShare: 1},
				{Label: core.ClusterLabel(0), Size: 2, Share: 2.0 / 3.0, Mean: []float64{20, 15, 60, 0.5}, MaleShare: 0.5},
			},
		},
	}
}

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if store.db == nil {
		t.Error("Store database should not be nil")
	}

	dbPath := filepath.Join(tmpDir, DatabaseFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should be created")
	}
	if store.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", store.Path(), dbPath)
	}
}

func TestNewStore_InvalidDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	_ = os.WriteFile(invalidPath, []byte("test"), 0644)

	_, err := NewStore(invalidPath)
	if err == nil {
		t.Error("Expected error when creating store in invalid directory")
	}
}

func TestSaveRun_GetRun(t *testing.T) {
	store := newTestStore(t)

	run := sampleRun()
	id, err := store.SaveRun(run)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if id == "" || run.ID != id {
		t.Fatalf("SaveRun should assign an id, got %q (run.ID %q)", id, run.ID)
	}
	if run.CreatedAt.IsZero() {
		t.Error("SaveRun should set CreatedAt")
	}

	got, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Dataset != run.Dataset || got.K != 2 || !got.ElbowFound || got.Seed != 42 || got.Records != 3 {
		t.Errorf("summary mismatch: %+v", got.RunSummary)
	}
	if got.Silhouette == nil || *got.Silhouette != 0.55 {
		t.Errorf("Silhouette = %v, want 0.55", got.Silhouette)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}

	if len(got.Sweep) != 3 {
		t.Fatalf("expected 3 sweep points, got %d", len(got.Sweep))
	}
	if got.Sweep[0].Silhouette != nil {
		t.Error("K=1 silhouette should be NULL")
	}
	if got.Sweep[2].K != 3 || *got.Sweep[2].Silhouette != 0.31 {
		t.Errorf("unexpected sweep point %+v", got.Sweep[2])
	}

	if len(got.Assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(got.Assignments))
	}
	if !got.Assignments[2].DBSCAN.IsNoise() {
		t.Error("customer 3 should be noise")
	}
	if got.Assignments[0].DBSCAN != core.ClusterLabel(0) {
		t.Errorf("customer 1 dbscan = %s, want 0", got.Assignments[0].DBSCAN)
	}

	db := got.Profiles["dbscan"]
	if len(db) != 2 {
		t.Fatalf("expected 2 dbscan profiles, got %d", len(db))
	}
	if db[0].Label != core.ClusterLabel(0) || !db[1].Label.IsNoise() {
		t.Errorf("profiles should be ordered by label with noise last, got %s, %s", db[0].Label, db[1].Label)
	}
	if len(got.Profiles["kmeans"]) != 2 || got.Profiles["kmeans"][1].Mean[1] != 90 {
		t.Errorf("unexpected kmeans profiles %+v", got.Profiles["kmeans"])
	}
}

func TestSaveRun_DuplicateID(t *testing.T) {
	store := newTestStore(t)

	run := sampleRun()
	if _, err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	dup := sampleRun()
	dup.ID = run.ID
	if _, err := store.SaveRun(dup); err == nil {
		t.Error("expected error saving a duplicate run id")
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("failed save should roll back, got %d runs", len(runs))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun()
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		run.K = i + 2
		run.Silhouette = nil
		if _, err := store.SaveRun(run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].K != 4 || runs[1].K != 3 {
		t.Errorf("runs should be newest first, got K=%d then K=%d", runs[0].K, runs[1].K)
	}
	if runs[0].Silhouette != nil {
		t.Error("nil silhouette should round-trip as nil")
	}

	all, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
}

func TestDeleteRun(t *testing.T) {
	store := newTestStore(t)

	keep, err := store.SaveRun(sampleRun())
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	drop, err := store.SaveRun(sampleRun())
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	if err := store.DeleteRun(drop); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := store.GetRun(drop); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("deleted run should be gone, got %v", err)
	}
	if _, err := store.GetRun(keep); err != nil {
		t.Errorf("other run should remain: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.AssignmentCount != 3 {
		t.Errorf("assignments of deleted run should be removed, got %d", stats.AssignmentCount)
	}

	if err := store.DeleteRun(drop); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound deleting twice, got %v", err)
	}
}

func TestStats_Clear(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.RunCount != 0 || !stats.LastRun.IsZero() {
		t.Errorf("empty store stats = %+v", stats)
	}

	run := sampleRun()
	run.CreatedAt = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	if _, err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	stats, err = store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.RunCount != 1 || stats.AssignmentCount != 3 {
		t.Errorf("unexpected counts %+v", stats)
	}
	if !stats.LastRun.Equal(run.CreatedAt) {
		t.Errorf("LastRun = %v, want %v", stats.LastRun, run.CreatedAt)
	}
	if stats.SizeBytes <= 0 {
		t.Error("SizeBytes should be positive")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	stats, err = store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.RunCount != 0 || stats.AssignmentCount != 0 {
		t.Errorf("store should be empty after Clear, got %+v", stats)
	}
}
