package filtergroup

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region schema
const groupSchema = `
CREATE TABLE IF NOT EXISTS filter_groups (
	fingerprint   TEXT NOT NULL,
	group_type    TEXT NOT NULL,
	group_index   INTEGER NOT NULL,
	options_key   TEXT NOT NULL,
	payload       TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (fingerprint, group_type, group_index)
);
`

// #endregion schema

// #region store
// GroupStore caches built indexes in SQLite, keyed by a fingerprint of the
// corpus and build settings.
type GroupStore struct {
	db *sql.DB
}

// NewGroupStore creates the filter_groups table if needed.
func NewGroupStore(db *sql.DB) (*GroupStore, error) {
	if _, err := db.Exec(groupSchema); err != nil {
		return nil, fmt.Errorf("migrate filter_groups: %w", err)
	}
	return &GroupStore{db: db}, nil
}

// Fingerprint identifies a corpus, the grouping templates and the build
// configuration.
func Fingerprint(info scene.Info, scenes int, templates GroupingTemplates, cfg BuildConfig, seed uint64) (string, error) {
	tplJSON, err := json.Marshal(templates)
	if err != nil {
		return "", fmt.Errorf("marshal grouping templates: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%d|%d|", info.Get("split"), info.Get("version"), scenes,
		cfg.InstancesPerTemplate, cfg.ScenesPerGroup, seed)
	h.Write(tplJSON)
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Save replaces any cached index for the fingerprint.
func (s *GroupStore) Save(fingerprint string, ix *Index) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM filter_groups WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("clear groups: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, gt := range program.GroupTypes {
		for _, k := range ix.Keys(gt) {
			g := ix.Groups(gt)[k]
			payload, err := json.Marshal(g)
			if err != nil {
				return fmt.Errorf("marshal group %d: %w", k, err)
			}
			_, err = tx.Exec(
				`INSERT INTO filter_groups (fingerprint, group_type, group_index, options_key, payload, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				fingerprint, string(gt), k, g.FilterOptions.Key(), string(payload), now,
			)
			if err != nil {
				return fmt.Errorf("insert group %d: %w", k, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load returns the cached index for the fingerprint, or ok=false.
func (s *GroupStore) Load(fingerprint string) (*Index, bool, error) {
	rows, err := s.db.Query(
		`SELECT group_type, group_index, payload FROM filter_groups WHERE fingerprint = ? ORDER BY group_index`,
		fingerprint,
	)
	if err != nil {
		return nil, false, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	ix := NewIndex()
	found := false
	for rows.Next() {
		var gt, payload string
		var idx int
		if err := rows.Scan(&gt, &idx, &payload); err != nil {
			return nil, false, fmt.Errorf("scan group: %w", err)
		}
		var g Group
		if err := json.Unmarshal([]byte(payload), &g); err != nil {
			return nil, false, fmt.Errorf("decode group %d: %w", idx, err)
		}
		ix.Put(program.GroupType(gt), idx, &g)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return ix, found, nil
}

// #endregion store
