// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

// AttachResult reports what AttachCategories changed.
type AttachResult struct {
	// Created lists categories that did not exist before the call.
	Created []string

	// Attached lists categories newly associated with the paper.
	Attached []string
}

// AttachCategories associates the named categories with a paper, creating
// missing categories. Attaching an already-attached category is a no-op,
// so repeated calls with the same names leave one association each. All
// changes commit together.
func (s *Store) AttachCategories(ctx context.Context, paperID int64, names []string) (AttachResult, error) {
	var res AttachResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM papers WHERE id = ?`, paperID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return res, apperr.Errorf(apperr.NotFound, "store.attach", "paper %d not found", paperID)
		}
		return res, fmt.Errorf("checking paper %d: %w", paperID, err)
	}

	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		catID, created, err := getOrCreateCategory(ctx, tx, name)
		if err != nil {
			return AttachResult{}, err
		}
		if created {
			res.Created = append(res.Created, name)
		}

		r, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO paper_categories (paper_id, category_id) VALUES (?, ?)`, paperID, catID)
		if err != nil {
			return AttachResult{}, fmt.Errorf("attaching %q to paper %d: %w", name, paperID, err)
		}
		if n, _ := r.RowsAffected(); n > 0 {
			res.Attached = append(res.Attached, name)
		}
	}

	if err := tx.Commit(); err != nil {
		return AttachResult{}, fmt.Errorf("committing categories for paper %d: %w", paperID, err)
	}
	return res, nil
}

func getOrCreateCategory(ctx context.Context, tx *sql.Tx, name string) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("looking up category %q: %w", name, err)
	}

	r, err := tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return 0, false, fmt.Errorf("creating category %q: %w", name, err)
	}
	id, err = r.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("reading category id: %w", err)
	}
	return id, true, nil
}

// CategoryNames returns all category names in alphabetical order.
func (s *Store) CategoryNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing category names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ListCategories returns every category with its paper count, most used
// first.
func (s *Store) ListCategories(ctx context.Context) ([]types.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT c.id, c.name, c.description, COUNT(pc.paper_id) AS n
		FROM categories c
		LEFT JOIN paper_categories pc ON pc.category_id = c.id
		GROUP BY c.id
		ORDER BY n DESC, c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	cats := []types.Category{}
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.PaperCount); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// categoriesFor maps paper ids to their category names, sorted by name.
func (s *Store) categoriesFor(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sq.Select("pc.paper_id", "c.name").
		From("paper_categories pc").
		Join("categories c ON c.id = pc.category_id").
		Where(sq.Eq{"pc.paper_id": ids}).
		OrderBy("pc.paper_id", "c.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}
