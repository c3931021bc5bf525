package orchestrator

// #region imports
import (
	"database/sql"
	"time"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/grounding"
)

// #endregion

// #region schema

const attemptOutcomesSchema = `
CREATE TABLE IF NOT EXISTS attempt_outcomes (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL,
    template_class  TEXT NOT NULL,
    template_index  INTEGER NOT NULL,
    attempt_num     INTEGER NOT NULL,
    accepted        INTEGER NOT NULL DEFAULT 0,
    reason          TEXT NOT NULL DEFAULT '',
    detail          TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL
);
`

const attemptOutcomesIndex = `
CREATE INDEX IF NOT EXISTS idx_attempt_outcomes_template
ON attempt_outcomes(run_id, template_class, template_index);
`

// #endregion

// #region memory-struct

// OutcomeMemory persists attempt outcomes in SQLite for later inspection.
type OutcomeMemory struct {
	db *sql.DB
}

// NewOutcomeMemory initializes the attempt_outcomes table and returns an OutcomeMemory.
func NewOutcomeMemory(db *sql.DB) (*OutcomeMemory, error) {
	if _, err := db.Exec(attemptOutcomesSchema); err != nil {
		return nil, err
	}
	if _, err := db.Exec(attemptOutcomesIndex); err != nil {
		return nil, err
	}
	return &OutcomeMemory{db: db}, nil
}

// #endregion

// #region record-outcome

// RecordOutcome persists a single attempt outcome row.
func (m *OutcomeMemory) RecordOutcome(rec OutcomeRecord) error {
	accepted := 0
	if rec.Accepted {
		accepted = 1
	}
	_, err := m.db.Exec(`
		INSERT INTO attempt_outcomes
		(run_id, template_class, template_index, attempt_num, accepted, reason, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Template.Class,
		rec.Template.Index,
		rec.Attempt,
		accepted,
		string(rec.Reason),
		rec.Detail,
		rec.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// #endregion

// #region template-stats

// TemplateStats aggregates the recorded attempts of one template.
type TemplateStats struct {
	Template TemplateRef
	Attempts int
	Accepted int
	ByReason map[grounding.RejectReason]int
}

// AcceptanceRate is the share of attempts that were accepted.
func (s TemplateStats) AcceptanceRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Attempts)
}

// Stats returns per-template aggregates for a run, ordered by class and
// index. An empty runID aggregates every run.
func (m *OutcomeMemory) Stats(runID string) ([]TemplateStats, error) {
	rows, err := m.db.Query(`
		SELECT template_class, template_index, accepted, reason, COUNT(*)
		FROM attempt_outcomes
		WHERE ? = '' OR run_id = ?
		GROUP BY template_class, template_index, accepted, reason
		ORDER BY template_class, template_index`,
		runID, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TemplateStats
	pos := make(map[TemplateRef]int)
	for rows.Next() {
		var ref TemplateRef
		var accepted, n int
		var reason string
		if err := rows.Scan(&ref.Class, &ref.Index, &accepted, &reason, &n); err != nil {
			return nil, err
		}
		i, ok := pos[ref]
		if !ok {
			i = len(out)
			pos[ref] = i
			out = append(out, TemplateStats{Template: ref, ByReason: make(map[grounding.RejectReason]int)})
		}
		out[i].Attempts += n
		if accepted == 1 {
			out[i].Accepted += n
		} else {
			out[i].ByReason[grounding.RejectReason(reason)] += n
		}
	}
	return out, rows.Err()
}

// #endregion
