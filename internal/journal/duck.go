package journal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcboeker/go-duckdb"

	"github.com/plc-filebridge/backend/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS task_runs (
		run_id       VARCHAR PRIMARY KEY,
		cycle_id     VARCHAR NOT NULL,
		file_path    VARCHAR NOT NULL,
		device_id    VARCHAR,
		data_id      VARCHAR,
		status       VARCHAR NOT NULL,
		error        VARCHAR,
		rows_sent    BIGINT NOT NULL,
		failed_cells BIGINT NOT NULL,
		started_at   TIMESTAMP NOT NULL,
		duration_ms  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sheet_runs (
		run_id    VARCHAR NOT NULL,
		sheet     VARCHAR NOT NULL,
		rows_sent BIGINT NOT NULL,
		written   BIGINT NOT NULL,
		watermark VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS cell_failures (
		run_id   VARCHAR NOT NULL,
		sheet    VARCHAR NOT NULL,
		node_id  VARCHAR NOT NULL,
		value    VARCHAR,
		row_time TIMESTAMP,
		error    VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON task_runs(started_at)`,
}

// DuckJournal persists reports in a DuckDB file.
type DuckJournal struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenDuck opens or creates the journal database at path.
func OpenDuck(path string) (*DuckJournal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal directory: %w", err)
		}
	}
	return connect(path, schema)
}

// OpenDuckReadOnly opens an existing journal for queries. DuckDB refuses it
// while another process holds the file open for writing.
func OpenDuckReadOnly(path string) (*DuckJournal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}
	return connect(path+"?access_mode=read_only", nil)
}

func connect(dsn string, stmts []string) (*DuckJournal, error) {
	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create journal schema: %w", err)
		}
	}
	return &DuckJournal{db: db}, nil
}

// Record writes the run, its sheets and its cell failures in one transaction.
func (j *DuckJournal) Record(ctx context.Context, r models.TaskReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.CycleID, r.FilePath, r.DeviceID, r.DataID, r.Status, r.Error,
		int64(r.RowsSent()), int64(r.FailedCells()), r.StartedAt.UTC(), r.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert task run: %w", err)
	}

	for _, s := range r.Sheets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_runs VALUES (?, ?, ?, ?, ?)`,
			r.RunID, s.Sheet, int64(s.Rows), int64(s.Written), s.Watermark,
		); err != nil {
			return fmt.Errorf("insert sheet run: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}

	if r.FailedCells() > 0 {
		return j.appendFailures(ctx, r)
	}
	return nil
}

// appendFailures bulk-loads cell failures with the native Appender.
func (j *DuckJournal) appendFailures(ctx context.Context, r models.TaskReport) error {
	conn, err := j.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		appender, err := duckdb.NewAppenderFromConn(dConn, "", "cell_failures")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for _, s := range r.Sheets {
			for _, f := range s.Failures {
				if err := appender.AppendRow(r.RunID, s.Sheet, f.NodeID, f.Value, f.RowTime.UTC(), f.Err); err != nil {
					return fmt.Errorf("failed to append cell failure: %w", err)
				}
			}
		}
		return appender.Flush()
	})
}

// Recent returns the latest runs, newest first.
func (j *DuckJournal) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, cycle_id, file_path, data_id, status, error, rows_sent, failed_cells, started_at, duration_ms
		FROM task_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var dataID, errText sql.NullString
		var rowsSent, failed int64
		if err := rows.Scan(&s.RunID, &s.CycleID, &s.FilePath, &dataID, &s.Status, &errText,
			&rowsSent, &failed, &s.StartedAt, &s.DurationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.DataID, s.Error = dataID.String, errText.String
		s.Rows, s.FailedCells = int(rowsSent), int(failed)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Failures returns the cell failures of one run.
func (j *DuckJournal) Failures(ctx context.Context, runID string) ([]models.CellFailure, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT node_id, value, row_time, error FROM cell_failures WHERE run_id = ? ORDER BY row_time, node_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []models.CellFailure
	for rows.Next() {
		var f models.CellFailure
		var value, errText sql.NullString
		if err := rows.Scan(&f.NodeID, &value, &f.RowTime, &errText); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Value, f.Err = value.String, errText.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func (j *DuckJournal) Close() error {
	return j.db.Close()
}
