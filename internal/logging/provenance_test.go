package logging

import (
	"database/sql"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE provenance_log (
		run_id         TEXT NOT NULL,
		template_class TEXT NOT NULL,
		template_index INTEGER NOT NULL,
		group_type     TEXT NOT NULL,
		group_index    INTEGER NOT NULL,
		question       TEXT NOT NULL,
		answers_json   TEXT,
		decision       TEXT NOT NULL,
		reason         TEXT,
		created_at     TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-question-tests
func TestLogQuestion_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		RunID:         "r1",
		TemplateClass: "2_remove",
		TemplateIndex: 3,
		GroupType:     "multiple",
		GroupIndex:    12,
		Question:      "If you removed the blue things, how many things would be left?",
		AnswersJSON:   "[1,2,3]",
		Decision:      "accept",
		Reason:        "passed gate: soft_score=1.0000",
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogQuestion(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var runID, class, answers string
	var groupIndex int
	db.QueryRow("SELECT run_id, template_class, group_index, answers_json FROM provenance_log").Scan(&runID, &class, &groupIndex, &answers)
	if runID != "r1" || class != "2_remove" {
		t.Errorf("unexpected row %q %q", runID, class)
	}
	if groupIndex != 12 {
		t.Errorf("expected group_index 12, got %d", groupIndex)
	}
	if answers != "[1,2,3]" {
		t.Errorf("expected answers [1,2,3], got %q", answers)
	}
}

func TestLogQuestion_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogQuestion(db, ProvenanceEntry{RunID: "r2", TemplateClass: "1_count", GroupType: "unique", Question: "q", Decision: "accept"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogQuestion_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	err := LogQuestion(db, ProvenanceEntry{RunID: "r3", TemplateClass: "1_count", GroupType: "unique", Question: "q", Decision: "accept"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var answers, reason sql.NullString
	db.QueryRow("SELECT answers_json, reason FROM provenance_log").Scan(&answers, &reason)
	if answers.Valid {
		t.Error("expected NULL answers_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogQuestion_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogQuestion(db, ProvenanceEntry{RunID: "r4", Decision: "accept"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-question-tests

// #region logger-tests
func TestNewLogger_Levels(t *testing.T) {
	quiet, err := NewLogger(Options{})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if quiet.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled without verbose")
	}

	verbose, err := NewLogger(Options{Verbose: true, JSON: true})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !verbose.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled with verbose")
	}
}

func TestLogSample_CapsCount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	texts := []string{"a", "b", "c", "d", "e", "f", "g"}
	LogSample(logger, sample.New(1, ""), "sample question", texts, 5)
	if logs.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", logs.Len())
	}

	LogSample(logger, sample.New(1, ""), "sample question", texts[:2], 5)
	if logs.Len() != 7 {
		t.Fatalf("expected 2 more entries, got %d", logs.Len()-5)
	}
}

// #endregion logger-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
