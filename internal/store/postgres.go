package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-triage/internal/db"
	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/report"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, doc_id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, doc_id, source, status, result, created_at, updated_at FROM runs WHERE id = $1`,
	"get_decision":      `SELECT run_id, record, validation, decision, insight FROM decisions WHERE run_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	doc_id     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decisions (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	doc_id     TEXT NOT NULL,
	record     JSONB NOT NULL,
	validation JSONB NOT NULL,
	decision   JSONB NOT NULL,
	insight    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_audits (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id            TEXT NOT NULL,
	doc_id            TEXT NOT NULL,
	field             TEXT NOT NULL,
	value             TEXT,
	confidence        DOUBLE PRECISION NOT NULL,
	vendor_field_name TEXT NOT NULL DEFAULT '',
	pipeline_version  TEXT NOT NULL DEFAULT '',
	vendor_version    TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS record_archive (
	doc_id           TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL,
	vendor_name      TEXT NOT NULL DEFAULT '',
	outcome          TEXT NOT NULL DEFAULT '',
	reason_codes     TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	validation_pass  BOOLEAN NOT NULL DEFAULT false,
	total_amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
	archived_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_doc_id ON runs(doc_id);
CREATE INDEX IF NOT EXISTS idx_decisions_doc_id ON decisions(doc_id);
CREATE INDEX IF NOT EXISTS idx_field_audits_doc_id ON field_audits(doc_id);
CREATE INDEX IF NOT EXISTS idx_field_audits_run_id ON field_audits(run_id);
CREATE INDEX IF NOT EXISTS idx_record_archive_outcome ON record_archive(outcome);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, docID, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, doc_id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, docID, source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunDoc(ctx context.Context, runID, docID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET doc_id = $1, updated_at = $2 WHERE id = $3`,
		docID, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run doc %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	status := model.RunStatusComplete
	if result.Error != "" {
		status = model.RunStatusFailed
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, doc_id, source, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.DocID, &r.Source, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if len(resultJSON) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, doc_id, source, status, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.DocID != "" {
		query += fmt.Sprintf(` AND doc_id = $%d`, argIdx)
		args = append(args, filter.DocID)
		argIdx++
	}
	if filter.Outcome != "" {
		query += fmt.Sprintf(` AND result->>'outcome' = $%d`, argIdx)
		args = append(args, string(filter.Outcome))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var resultJSON []byte

		if err := rows.Scan(&r.ID, &r.DocID, &r.Source, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(resultJSON) > 0 {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveDecision(ctx context.Context, res *model.ProcessResult) error {
	recordJSON, validationJSON, decisionJSON, insightJSON, err := marshalDecision(res)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (run_id, doc_id, record, validation, decision, insight, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id) DO UPDATE SET
		   record = EXCLUDED.record, validation = EXCLUDED.validation,
		   decision = EXCLUDED.decision, insight = EXCLUDED.insight`,
		res.RunID, res.Record.DocID, recordJSON, validationJSON,
		decisionJSON, insightJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save decision for run %s", res.RunID)
}

func (s *PostgresStore) GetDecision(ctx context.Context, runID string) (*model.ProcessResult, error) {
	var res model.ProcessResult
	var recordJSON, validationJSON, decisionJSON, insightJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT run_id, record, validation, decision, insight FROM decisions WHERE run_id = $1`,
		runID,
	).Scan(&res.RunID, &recordJSON, &validationJSON, &decisionJSON, &insightJSON)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get decision for run %s", runID)
	}

	if err := unmarshalDecision(&res, recordJSON, validationJSON, decisionJSON); err != nil {
		return nil, err
	}
	if len(insightJSON) > 0 {
		res.Insight = &model.InvoiceInsight{}
		if err := json.Unmarshal(insightJSON, res.Insight); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal insight")
		}
	}
	return &res, nil
}

var fieldAuditColumns = []string{
	"id", "run_id", "doc_id", "field", "value", "confidence",
	"vendor_field_name", "pipeline_version", "vendor_version", "created_at",
}

// SaveFieldAudits bulk-inserts per-field provenance rows for one record.
func (s *PostgresStore) SaveFieldAudits(ctx context.Context, runID string, record *model.InvoiceRecord) (int64, error) {
	now := time.Now().UTC()
	var rows [][]any
	for _, field := range model.AllCanonicalFields() {
		audit := record.Field(field)
		if audit == nil {
			continue
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, record.DocID, string(field),
			fmt.Sprintf("%v", audit.Value), audit.Confidence,
			audit.VendorFieldName, audit.PipelineVersion, audit.VendorVersion, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "field_audits", fieldAuditColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save field audits for run %s", runID)
	}
	return n, nil
}

var archiveColumns = []string{
	"doc_id", "run_id", "vendor_name", "outcome", "reason_codes",
	"confidence_score", "validation_pass", "total_amount", "archived_at",
}

// ArchiveRecords upserts flattened batch records keyed by doc_id, so
// re-processing a document replaces its previous archive row.
func (s *PostgresStore) ArchiveRecords(ctx context.Context, records []report.Record) (int64, error) {
	now := time.Now().UTC()
	var rows [][]any
	for _, rec := range records {
		if rec.DocID == "" {
			continue
		}
		rows = append(rows, []any{
			rec.DocID, rec.RunID, rec.VendorName, string(rec.Outcome),
			strings.Join(rec.ReasonCodes, ","), rec.ConfidenceScore,
			rec.ValidationPass, rec.TotalAmount(), now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "record_archive",
		Columns:      archiveColumns,
		ConflictKeys: []string{"doc_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: archive records")
	}
	return n, nil
}
