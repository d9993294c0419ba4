package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var stateQueries = map[string]string{
	"run":      "SELECT COUNT(*) FROM run",
	"feature":  "SELECT COUNT(*) FROM run_feature",
	"scaler":   "SELECT COUNT(*) FROM run_scaler",
	"label":    "SELECT COUNT(*) FROM run_label",
	"datasets": "SELECT COUNT(DISTINCT dataset) FROM run",
}

// GetDataState returns row counts of the store tables.
func (s *Store) GetDataState(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.DB == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64, len(stateQueries))
	for k, q := range stateQueries {
		count, err := getCount(ctx, s.DB, q)
		if err != nil {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}
	return state, nil
}

func getCount(ctx context.Context, db *sql.DB, query string) (int64, error) {
	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan row: %w", err)
	}
	return count, nil
}
