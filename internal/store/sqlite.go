package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/invoice-triage/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	doc_id     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decisions (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	doc_id     TEXT NOT NULL,
	record     TEXT NOT NULL,
	validation TEXT NOT NULL,
	decision   TEXT NOT NULL,
	insight    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_doc_id ON runs(doc_id);
CREATE INDEX IF NOT EXISTS idx_decisions_doc_id ON decisions(doc_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, docID, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, doc_id, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, docID, source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		DocID:     docID,
		Source:    source,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunDoc(ctx context.Context, runID, docID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET doc_id = ?, updated_at = ? WHERE id = ?`,
		docID, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run doc %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	status := model.RunStatusComplete
	if result.Error != "" {
		status = model.RunStatusFailed
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc_id, source, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, doc_id, source, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DocID != "" {
		query += ` AND doc_id = ?`
		args = append(args, filter.DocID)
	}
	if filter.Outcome != "" {
		query += ` AND json_extract(result, '$.outcome') = ?`
		args = append(args, string(filter.Outcome))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, res *model.ProcessResult) error {
	recordJSON, validationJSON, decisionJSON, insightJSON, err := marshalDecision(res)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (run_id, doc_id, record, validation, decision, insight, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET
		   record = excluded.record, validation = excluded.validation,
		   decision = excluded.decision, insight = excluded.insight`,
		res.RunID, res.Record.DocID, string(recordJSON), string(validationJSON),
		string(decisionJSON), nullableString(insightJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save decision for run %s", res.RunID)
}

func (s *SQLiteStore) GetDecision(ctx context.Context, runID string) (*model.ProcessResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, record, validation, decision, insight FROM decisions WHERE run_id = ?`,
		runID,
	)

	var res model.ProcessResult
	var recordJSON, validationJSON, decisionJSON string
	var insightJSON sql.NullString

	err := row.Scan(&res.RunID, &recordJSON, &validationJSON, &decisionJSON, &insightJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("decision not found for run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan decision")
	}

	if err := unmarshalDecision(&res, []byte(recordJSON), []byte(validationJSON), []byte(decisionJSON)); err != nil {
		return nil, err
	}
	if insightJSON.Valid {
		res.Insight = &model.InvoiceInsight{}
		if err := json.Unmarshal([]byte(insightJSON.String), res.Insight); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal insight")
		}
	}
	return &res, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.DocID, &r.Source, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

func marshalDecision(res *model.ProcessResult) (record, validation, decision, insight []byte, err error) {
	if res.Record == nil {
		return nil, nil, nil, nil, eris.New("store: decision has no record")
	}
	if record, err = json.Marshal(res.Record); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "store: marshal record")
	}
	if validation, err = json.Marshal(res.Validation); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "store: marshal validation")
	}
	if decision, err = json.Marshal(res.Decision); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "store: marshal decision")
	}
	if res.Insight != nil {
		if insight, err = json.Marshal(res.Insight); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "store: marshal insight")
		}
	}
	return record, validation, decision, insight, nil
}

func unmarshalDecision(res *model.ProcessResult, record, validation, decision []byte) error {
	res.Record = &model.InvoiceRecord{}
	if err := json.Unmarshal(record, res.Record); err != nil {
		return eris.Wrap(err, "store: unmarshal record")
	}
	if err := json.Unmarshal(validation, &res.Validation); err != nil {
		return eris.Wrap(err, "store: unmarshal validation")
	}
	if err := json.Unmarshal(decision, &res.Decision); err != nil {
		return eris.Wrap(err, "store: unmarshal decision")
	}
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
