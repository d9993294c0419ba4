package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mchmarny/riskprep/pkg/feature"
)

const (
	insertRunSQL = `INSERT INTO run (id, dataset, year, source, input_rows, output_rows,
			train_rows, test_rows, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	insertFeatureSQL = `INSERT INTO run_feature (run_id, position, name, removed) VALUES (?, ?, ?, ?)`
	insertScalerSQL  = `INSERT INTO run_scaler (run_id, position, name, mean, std) VALUES (?, ?, ?, ?, ?)`
	insertLabelSQL   = `INSERT INTO run_label (run_id, label, count) VALUES (?, ?, ?)`

	selectRunColumns = `SELECT id, dataset, year, source, input_rows, output_rows,
			train_rows, test_rows, config, created_at
		FROM run`

	selectRunsSQL     = selectRunColumns + ` ORDER BY created_at DESC, id LIMIT ?`
	selectRunSQL      = selectRunColumns + ` WHERE id = ?`
	selectFeaturesSQL = `SELECT name, removed FROM run_feature WHERE run_id = ? ORDER BY position`
	selectScalerSQL   = `SELECT name, mean, std FROM run_scaler WHERE run_id = ? ORDER BY position`
	selectLabelsSQL   = `SELECT label, count FROM run_label WHERE run_id = ?`

	DefaultListLimit = 20
)

var ErrRunNotFound = errors.New("run not found")

// Run is a single pipeline execution.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Dataset    string    `json:"dataset" yaml:"dataset"`
	Year       int       `json:"year" yaml:"year"`
	Source     string    `json:"source" yaml:"source"`
	InputRows  int       `json:"input_rows" yaml:"input_rows"`
	OutputRows int       `json:"output_rows" yaml:"output_rows"`
	TrainRows  int       `json:"train_rows" yaml:"train_rows"`
	TestRows   int       `json:"test_rows" yaml:"test_rows"`
	Config     string    `json:"config,omitempty" yaml:"config,omitempty"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// RunDetail is a run with its artifacts.
type RunDetail struct {
	Run      `yaml:",inline"`
	Retained []string             `json:"retained,omitempty" yaml:"retained,omitempty"`
	Removed  []string             `json:"removed,omitempty" yaml:"removed,omitempty"`
	Scaler   *feature.ScalerStats `json:"scaler,omitempty" yaml:"scaler,omitempty"`
	Labels   map[string]int       `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// SaveRun persists a run and its artifacts in one transaction. A missing
// ID or creation time is filled in. It returns the run ID.
func (s *Store) SaveRun(ctx context.Context, r *RunDetail) (string, error) {
	if s == nil || s.DB == nil {
		return "", errDBNotInitialized
	}
	if r == nil {
		return "", errors.New("run required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.saveRun(ctx, tx, r)
	}); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (s *Store) saveRun(ctx context.Context, tx *sql.Tx, r *RunDetail) error {
	if _, err := tx.ExecContext(ctx, s.rebind(insertRunSQL),
		r.ID, r.Dataset, r.Year, r.Source, r.InputRows, r.OutputRows,
		r.TrainRows, r.TestRows, r.Config, r.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	featStmt, err := tx.PrepareContext(ctx, s.rebind(insertFeatureSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare feature insert statement: %w", err)
	}
	defer featStmt.Close()

	pos := 0
	for _, group := range []struct {
		names   []string
		removed int
	}{{r.Retained, 0}, {r.Removed, 1}} {
		for _, n := range group.names {
			if _, err := featStmt.ExecContext(ctx, r.ID, pos, n, group.removed); err != nil {
				return fmt.Errorf("failed to insert feature %s: %w", n, err)
			}
			pos++
		}
	}

	if r.Scaler != nil {
		if err := r.Scaler.Validate(); err != nil {
			return fmt.Errorf("invalid scaler stats: %w", err)
		}
		scStmt, err := tx.PrepareContext(ctx, s.rebind(insertScalerSQL))
		if err != nil {
			return fmt.Errorf("failed to prepare scaler insert statement: %w", err)
		}
		defer scStmt.Close()
		for i, n := range r.Scaler.Columns {
			if _, err := scStmt.ExecContext(ctx, r.ID, i, n, r.Scaler.Mean[i], r.Scaler.Std[i]); err != nil {
				return fmt.Errorf("failed to insert scaler stats for %s: %w", n, err)
			}
		}
	}

	lblStmt, err := tx.PrepareContext(ctx, s.rebind(insertLabelSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare label insert statement: %w", err)
	}
	defer lblStmt.Close()

	labels := make([]string, 0, len(r.Labels))
	for k := range r.Labels {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, l := range labels {
		if _, err := lblStmt.ExecContext(ctx, r.ID, l, r.Labels[l]); err != nil {
			return fmt.Errorf("failed to insert label count %s: %w", l, err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s == nil || s.DB == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(selectRunsSQL), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute run select statement: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return list, nil
}

// GetRun returns a run with its features, scaler stats and label counts.
func (s *Store) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	if s == nil || s.DB == nil {
		return nil, errDBNotInitialized
	}

	r, err := scanRun(s.DB.QueryRowContext(ctx, s.rebind(selectRunSQL), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	d := &RunDetail{Run: *r}

	if err := s.loadFeatures(ctx, d); err != nil {
		return nil, err
	}
	if d.Scaler, err = s.GetScalerStats(ctx, id); err != nil && !errors.Is(err, feature.ErrNotFitted) {
		return nil, err
	}
	if err := s.loadLabels(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetScalerStats returns the scaler stats saved with a run.
func (s *Store) GetScalerStats(ctx context.Context, id string) (*feature.ScalerStats, error) {
	if s == nil || s.DB == nil {
		return nil, errDBNotInitialized
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(selectScalerSQL), id)
	if err != nil {
		return nil, fmt.Errorf("failed to execute scaler select statement: %w", err)
	}
	defer rows.Close()

	st := &feature.ScalerStats{}
	for rows.Next() {
		var (
			name      string
			mean, std float64
		)
		if err := rows.Scan(&name, &mean, &std); err != nil {
			return nil, fmt.Errorf("failed to scan scaler row: %w", err)
		}
		st.Columns = append(st.Columns, name)
		st.Mean = append(st.Mean, mean)
		st.Std = append(st.Std, std)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scaler rows: %w", err)
	}
	if len(st.Columns) == 0 {
		return nil, fmt.Errorf("%w: no scaler stats for run %s", feature.ErrNotFitted, id)
	}
	return st, nil
}

func (s *Store) loadFeatures(ctx context.Context, d *RunDetail) error {
	rows, err := s.DB.QueryContext(ctx, s.rebind(selectFeaturesSQL), d.ID)
	if err != nil {
		return fmt.Errorf("failed to execute feature select statement: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name    string
			removed int
		)
		if err := rows.Scan(&name, &removed); err != nil {
			return fmt.Errorf("failed to scan feature row: %w", err)
		}
		if removed == 1 {
			d.Removed = append(d.Removed, name)
			continue
		}
		d.Retained = append(d.Retained, name)
	}
	return rows.Err()
}

func (s *Store) loadLabels(ctx context.Context, d *RunDetail) error {
	rows, err := s.DB.QueryContext(ctx, s.rebind(selectLabelsSQL), d.ID)
	if err != nil {
		return fmt.Errorf("failed to execute label select statement: %w", err)
	}
	defer rows.Close()

	d.Labels = make(map[string]int)
	for rows.Next() {
		var (
			label string
			count int
		)
		if err := rows.Scan(&label, &count); err != nil {
			return fmt.Errorf("failed to scan label row: %w", err)
		}
		d.Labels[label] = count
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r       Run
		created string
	)
	if err := row.Scan(&r.ID, &r.Dataset, &r.Year, &r.Source, &r.InputRows, &r.OutputRows,
		&r.TrainRows, &r.TestRows, &r.Config, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("invalid run timestamp %q: %w", created, err)
	}
	r.CreatedAt = t
	return &r, nil
}

var deleteRunSQL = []string{
	`DELETE FROM run_label WHERE run_id = ?`,
	`DELETE FROM run_scaler WHERE run_id = ?`,
	`DELETE FROM run_feature WHERE run_id = ?`,
	`DELETE FROM run WHERE id = ?`,
}

var resetSQL = []string{
	`DELETE FROM run_label`,
	`DELETE FROM run_scaler`,
	`DELETE FROM run_feature`,
	`DELETE FROM run`,
}

// DeleteRun removes a run and its artifacts.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return errDBNotInitialized
	}

	var deleted int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range deleteRunSQL {
			res, err := tx.ExecContext(ctx, s.rebind(q), id)
			if err != nil {
				return fmt.Errorf("failed to delete run %s: %w", id, err)
			}
			deleted, _ = res.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// DeleteRuns removes every run and returns how many were deleted.
func (s *Store) DeleteRuns(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errDBNotInitialized
	}

	var deleted int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range resetSQL {
			res, err := tx.ExecContext(ctx, q)
			if err != nil {
				return fmt.Errorf("failed to delete runs: %w", err)
			}
			deleted, _ = res.RowsAffected()
		}
		return nil
	})
	return deleted, err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %w)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
