package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartAndGetRun(t *testing.T) {
	s := tempDB(t)

	rec, err := s.StartRun("val", 42, []string{"1_count", "2_remove"}, `{"seed":42}`)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if rec.RunID == "" {
		t.Fatal("expected non-empty run ID")
	}

	got, err := s.GetRun(rec.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}
	if got.Seed != 42 || got.Split != "val" {
		t.Fatalf("unexpected run %+v", got)
	}
	if len(got.Templates) != 2 || got.Templates[1] != "2_remove" {
		t.Fatalf("unexpected templates %v", got.Templates)
	}
	if !got.FinishedAt.IsZero() {
		t.Fatal("running run should have no finish time")
	}
}

func TestRecordFilesAndFinish(t *testing.T) {
	s := tempDB(t)
	rec, err := s.StartRun("train", 1, nil, "")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	files := []RunFile{
		{RunID: rec.RunID, Class: "2_remove", Path: "/out/CLEVR_train_2_remove.json", Questions: 7},
		{RunID: rec.RunID, Class: "1_count", Path: "/out/CLEVR_train_1_count.json", Questions: 5},
		{RunID: rec.RunID, Class: "3_transform", Failed: true, Error: "no multiple group"},
	}
	for _, f := range files {
		if err := s.RecordFile(f); err != nil {
			t.Fatalf("RecordFile: %v", err)
		}
	}
	if err := s.FinishRun(rec.RunID, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.GetRun(rec.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Questions != 12 {
		t.Fatalf("expected 12 questions, got %d", got.Questions)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("expected a finish time")
	}

	listed, err := s.ListFiles(rec.RunID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(listed) != 3 || listed[0].Class != "1_count" {
		t.Fatalf("expected files ordered by class, got %+v", listed)
	}
	if !listed[2].Failed || listed[2].Error != "no multiple group" {
		t.Fatalf("expected failed file, got %+v", listed[2])
	}
}

func TestFinishRunFailed(t *testing.T) {
	s := tempDB(t)
	rec, err := s.StartRun("val", 1, nil, "")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := s.FinishRun(rec.RunID, errors.New("corpus mismatch")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, _ := s.GetRun(rec.RunID)
	if got.Status != RunFailed || got.Error != "corpus mismatch" {
		t.Fatalf("expected failed run, got %+v", got)
	}

	if err := s.FinishRun("missing", nil); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := tempDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return at }
		if _, err := s.StartRun("val", uint64(i), nil, ""); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Seed != 2 || runs[1].Seed != 1 {
		t.Fatalf("expected newest first, got seeds %d, %d", runs[0].Seed, runs[1].Seed)
	}
}
