// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

// MinSearchLength is the shortest accepted search query.
const MinSearchLength = 2

var paperColumns = []string{
	"p.id", "p.identifier", "p.source", "p.title", "p.authors", "p.abstract",
	"p.summary", "p.summary_source", "p.status", "p.published", "p.pdf_url", "p.created_at",
}

// unprocessedCond matches rows whose summary is missing or blank.
const unprocessedCond = "COALESCE(TRIM(p.summary), '') = ''"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (types.Paper, error) {
	var (
		p                      types.Paper
		source, status         string
		summary, summarySource sql.NullString
		published, created     sql.NullString
	)
	err := row.Scan(&p.ID, &p.Identifier, &source, &p.Title, &p.Authors, &p.Abstract,
		&summary, &summarySource, &status, &published, &p.PDFURL, &created)
	if err != nil {
		return types.Paper{}, err
	}
	p.Source = types.Source(source)
	p.Summary = summary.String
	p.SummarySource = types.SummarySource(summarySource.String)
	p.Status = types.ProcessingState(status)
	if !p.Processed() {
		p.Status = types.StateUnprocessed
	}
	p.Published = parseTime(published)
	p.CreatedAt = parseTime(created)
	p.Categories = []string{}
	return p, nil
}

// GetPaper returns the paper with the given row id and its categories.
func (s *Store) GetPaper(ctx context.Context, id int64) (types.Paper, error) {
	return s.getPaperWhere(ctx, sq.Eq{"p.id": id}, fmt.Sprintf("paper %d", id))
}

// GetPaperByIdentifier returns the paper with the given external identifier.
func (s *Store) GetPaperByIdentifier(ctx context.Context, identifier string) (types.Paper, error) {
	return s.getPaperWhere(ctx, sq.Eq{"p.identifier": identifier}, fmt.Sprintf("paper %s", identifier))
}

func (s *Store) getPaperWhere(ctx context.Context, where sq.Sqlizer, what string) (types.Paper, error) {
	query, args, err := sq.Select(paperColumns...).From("papers p").Where(where).ToSql()
	if err != nil {
		return types.Paper{}, fmt.Errorf("building query: %w", err)
	}

	p, err := scanPaper(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Paper{}, apperr.Errorf(apperr.NotFound, "store.get", "%s not found", what)
	}
	if err != nil {
		return types.Paper{}, fmt.Errorf("querying %s: %w", what, err)
	}

	cats, err := s.categoriesFor(ctx, []int64{p.ID})
	if err != nil {
		return types.Paper{}, err
	}
	if names, ok := cats[p.ID]; ok {
		p.Categories = names
	}
	return p, nil
}

// ListPapers returns papers matching f, newest first.
func (s *Store) ListPapers(ctx context.Context, f types.PaperFilter) ([]types.Paper, error) {
	q := applyFilter(sq.Select(paperColumns...).From("papers p"), f).
		OrderBy("p.created_at DESC", "p.id DESC")
	return s.queryPapers(ctx, q)
}

// CountPapers returns how many papers match f, ignoring Limit and Offset.
func (s *Store) CountPapers(ctx context.Context, f types.PaperFilter) (int, error) {
	f.Limit, f.Offset = 0, 0
	query, args, err := applyFilter(sq.Select("COUNT(*)").From("papers p"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return n, nil
}

// SearchPapers matches q against titles and abstracts, case-insensitively.
// Queries shorter than MinSearchLength are rejected.
func (s *Store) SearchPapers(ctx context.Context, q string, limit int) ([]types.Paper, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinSearchLength {
		return nil, apperr.Errorf(apperr.Validation, "store.search",
			"search query must be at least %d characters", MinSearchLength)
	}
	if limit <= 0 {
		limit = 50
	}

	pattern := "%" + escapeLike(q) + "%"
	query := sq.Select(paperColumns...).From("papers p").
		Where(sq.Or{
			sq.Expr(`p.title LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`p.abstract LIKE ? ESCAPE '\'`, pattern),
		}).
		OrderBy("p.created_at DESC", "p.id DESC").
		Limit(uint64(limit))
	return s.queryPapers(ctx, query)
}

// RecentPapers returns papers inserted at or after since, newest first.
func (s *Store) RecentPapers(ctx context.Context, since time.Time, limit int) ([]types.Paper, error) {
	return s.ListPapers(ctx, types.PaperFilter{CreatedSince: since, Limit: limit})
}

// Unprocessed returns up to limit papers without a summary, oldest first.
func (s *Store) Unprocessed(ctx context.Context, limit int) ([]types.Paper, error) {
	q := sq.Select(paperColumns...).From("papers p").
		Where(unprocessedCond).
		OrderBy("p.created_at ASC", "p.id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryPapers(ctx, q)
}

func applyFilter(q sq.SelectBuilder, f types.PaperFilter) sq.SelectBuilder {
	if f.UnprocessedOnly {
		q = q.Where(unprocessedCond)
	}
	if f.Source != "" {
		q = q.Where(sq.Eq{"p.source": string(f.Source)})
	}
	if !f.From.IsZero() {
		q = q.Where(sq.GtOrEq{"p.published": formatTime(f.From)})
	}
	if !f.To.IsZero() {
		q = q.Where(sq.LtOrEq{"p.published": formatTime(f.To)})
	}
	if !f.CreatedSince.IsZero() {
		q = q.Where(sq.GtOrEq{"p.created_at": formatTime(f.CreatedSince)})
	}
	for _, name := range f.Categories {
		q = q.Where(sq.Expr(`EXISTS (SELECT 1 FROM paper_categories pc
			JOIN categories c ON c.id = pc.category_id
			WHERE pc.paper_id = p.id AND c.name = ?)`, name))
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
		if f.Offset > 0 {
			q = q.Offset(uint64(f.Offset))
		}
	}
	return q
}

func (s *Store) queryPapers(ctx context.Context, q sq.SelectBuilder) ([]types.Paper, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	var ids []int64
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating papers: %w", err)
	}
	rows.Close()

	cats, err := s.categoriesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range papers {
		if names, ok := cats[papers[i].ID]; ok {
			papers[i].Categories = names
		}
	}
	return papers, nil
}

// SetSummary stores a non-empty summary and marks the paper processed in
// the same statement.
func (s *Store) SetSummary(ctx context.Context, paperID int64, summary string, source types.SummarySource) error {
	if strings.TrimSpace(summary) == "" {
		return apperr.Errorf(apperr.Validation, "store.set_summary", "empty summary for paper %d", paperID)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET summary = ?, summary_source = ?, status = ? WHERE id = ?`,
		summary, string(source), string(types.StateProcessed), paperID)
	if err != nil {
		return fmt.Errorf("updating summary for paper %d: %w", paperID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Errorf(apperr.NotFound, "store.set_summary", "paper %d not found", paperID)
	}
	return nil
}

// DeletePaper removes a paper and its category associations.
func (s *Store) DeletePaper(ctx context.Context, paperID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, paperID)
	if err != nil {
		return fmt.Errorf("deleting paper %d: %w", paperID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Errorf(apperr.NotFound, "store.delete", "paper %d not found", paperID)
	}
	return nil
}

// Stats returns store-wide paper counts.
func (s *Store) Stats(ctx context.Context) (types.PaperStats, error) {
	weekAgo := formatTime(nowFunc().Add(-7 * 24 * time.Hour))

	var st types.PaperStats
	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN COALESCE(TRIM(summary), '') <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM papers`, weekAgo).Scan(&st.Total, &st.Processed, &st.ThisWeek)
	if err != nil {
		return types.PaperStats{}, fmt.Errorf("computing stats: %w", err)
	}
	st.Unprocessed = st.Total - st.Processed
	if st.Total > 0 {
		st.ProcessingRate = float64(st.Processed) / float64(st.Total) * 100
	}
	return st, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
