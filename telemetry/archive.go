package telemetry

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Seed is a placement seed stored as decimal text, since SQLite integers
// are signed and seeds use the full uint64 range.
type Seed uint64

// Value implements driver.Valuer.
func (s Seed) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(s), 10), nil
}

// Scan implements sql.Scanner.
func (s *Seed) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case int64:
		*s = Seed(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Seed", src)
	}

	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("parse seed %q: %w", text, err)
	}
	*s = Seed(n)
	return nil
}

// RunInfo identifies an archived run.
type RunInfo struct {
	ID        string    `db:"id"`
	Seed      Seed      `db:"seed"`
	Output    string    `db:"output"`
	CreatedAt time.Time `db:"created_at"`
	RunSummary
}

// Archive stores completed runs and their trap series in SQLite.
type Archive struct {
	conn *sqlx.DB
}

// OpenArchive opens or creates a SQLite archive at the given path.
func OpenArchive(path string) (*Archive, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &Archive{conn: conn}
	if err := a.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		output TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		steps INTEGER NOT NULL,
		trapped_steps INTEGER NOT NULL,
		first_trapped INTEGER NOT NULL,
		longest_trapped INTEGER NOT NULL,
		trapped_fraction REAL NOT NULL,
		mean_x REAL NOT NULL,
		mean_y REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		step INTEGER NOT NULL,
		trapped INTEGER NOT NULL,
		cumulative INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		PRIMARY KEY (run_id, step)
	);
	`
	_, err := a.conn.Exec(schema)
	return err
}

// SaveRun writes the run and all its records, replacing any earlier copy.
func (a *Archive) SaveRun(ctx context.Context, info RunInfo, records []Record) error {
	tx, err := a.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, info.ID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, seed, output, created_at, steps, trapped_steps,
			first_trapped, longest_trapped, trapped_fraction, mean_x, mean_y)
		VALUES (:id, :seed, :output, :created_at, :steps, :trapped_steps,
			:first_trapped, :longest_trapped, :trapped_fraction, :mean_x, :mean_y)
		ON CONFLICT(id) DO UPDATE SET
			seed = excluded.seed,
			output = excluded.output,
			created_at = excluded.created_at,
			steps = excluded.steps,
			trapped_steps = excluded.trapped_steps,
			first_trapped = excluded.first_trapped,
			longest_trapped = excluded.longest_trapped,
			trapped_fraction = excluded.trapped_fraction,
			mean_x = excluded.mean_x,
			mean_y = excluded.mean_y
	`, info)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO records (run_id, step, trapped, cumulative, x, y)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, info.ID, r.Step, r.Trapped, r.Cumulative, r.X, r.Y); err != nil {
			return fmt.Errorf("save record %d: %w", r.Step, err)
		}
	}

	return tx.Commit()
}

// Run loads an archived run's metadata.
func (a *Archive) Run(ctx context.Context, id string) (RunInfo, error) {
	var info RunInfo
	err := a.conn.GetContext(ctx, &info, `SELECT * FROM runs WHERE id = ?`, id)
	if err != nil {
		return RunInfo{}, fmt.Errorf("load run %s: %w", id, err)
	}
	return info, nil
}

// Records loads a run's series in step order.
func (a *Archive) Records(ctx context.Context, runID string) ([]Record, error) {
	var records []Record
	err := a.conn.SelectContext(ctx, &records, `
		SELECT step, trapped, cumulative, x, y
		FROM records WHERE run_id = ? ORDER BY step
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", runID, err)
	}
	return records, nil
}

// Runs lists archived runs, newest first.
func (a *Archive) Runs(ctx context.Context) ([]RunInfo, error) {
	var runs []RunInfo
	if err := a.conn.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
