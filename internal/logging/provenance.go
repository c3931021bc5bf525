package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-question
// LogQuestion writes a provenance entry to the provenance_log table.
func LogQuestion(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (run_id, template_class, template_index, group_type, group_index, question, answers_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.TemplateClass,
		entry.TemplateIndex,
		entry.GroupType,
		entry.GroupIndex,
		entry.Question,
		nullIfEmpty(entry.AnswersJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log question: %w", err)
	}
	return nil
}

// #endregion log-question

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
