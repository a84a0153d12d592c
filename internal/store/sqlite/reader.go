package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"alert-systemv1/internal/model"
)

// LoadAlerts returns all persisted alerts ordered oldest first. Used at
// startup to restore the in-memory alert log.
func (s *Store) LoadAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, asset, ts, message, region
		FROM alerts
		ORDER BY ts ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite load alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var (
			a      model.Alert
			typ    string
			region sql.NullString
		)
		if err := rows.Scan(&a.ID, &typ, &a.Asset, &a.TS, &a.Message, &region); err != nil {
			return nil, fmt.Errorf("sqlite scan alert: %w", err)
		}
		a.Type = model.AlertType(typ)
		if region.Valid {
			var r model.BreakRegion
			if err := json.Unmarshal([]byte(region.String), &r); err == nil {
				a.Region = &r
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAlerts returns the number of persisted alerts.
func (s *Store) CountAlerts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n)
	return n, err
}
