// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/paper-search/pkg/types"
)

// SaveReport stores a generated digest.
func (s *Store) SaveReport(ctx context.Context, reportType types.ReportType, content string) (types.Report, error) {
	r := types.Report{Type: reportType, Content: content, CreatedAt: nowFunc().UTC()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (report_type, content, created_at) VALUES (?, ?, ?)`,
		string(r.Type), r.Content, formatTime(r.CreatedAt))
	if err != nil {
		return types.Report{}, fmt.Errorf("saving %s report: %w", reportType, err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return types.Report{}, fmt.Errorf("reading report id: %w", err)
	}
	return r, nil
}

// ListReports returns the most recent reports, optionally of one type.
func (s *Store) ListReports(ctx context.Context, reportType types.ReportType, limit int) ([]types.Report, error) {
	if limit <= 0 {
		limit = 10
	}
	q := sq.Select("id", "report_type", "content", "created_at").
		From("reports").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if reportType != "" {
		q = q.Where(sq.Eq{"report_type": string(reportType)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := []types.Report{}
	for rows.Next() {
		var r types.Report
		var rt string
		var created sql.NullString
		if err := rows.Scan(&r.ID, &rt, &r.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		r.Type = types.ReportType(rt)
		r.CreatedAt = parseTime(created)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
