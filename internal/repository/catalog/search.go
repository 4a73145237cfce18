package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/search/query"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchProducts answers parsed straight from the relational catalog: the
// product name contains every text term, and one variant carries a value of
// every requested option. Values of the same option are alternatives.
// Products come back most popular first with all their variants.
func (r *Repo) SearchProducts(ctx context.Context, parsed query.Parsed, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	db, err := r.handle()
	if err != nil {
		return nil, err
	}

	stmt, args := relationalQuery(parsed, limit)
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		p, err := r.FetchAggregate(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// relationalQuery builds one EXISTS per option group, all correlated on the
// same variant row.
func relationalQuery(parsed query.Parsed, limit int) (string, []any) {
	var (
		where []string
		args  []any
	)
	for _, term := range strings.Fields(parsed.Text) {
		where = append(where, `p.name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
	}

	if groups := parsed.Grouped(); len(groups) > 0 {
		var b strings.Builder
		b.WriteString("EXISTS (SELECT 1 FROM variants v WHERE v.product_id = p.id")
		for _, g := range groups {
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(g.Values)), ", ")
			fmt.Fprintf(&b, `
			AND EXISTS (SELECT 1 FROM variant_selections s
				JOIN option_values ov ON ov.id = s.option_value_id
				JOIN options o ON o.id = ov.option_id
				WHERE s.variant_id = v.id AND o.name = ? COLLATE NOCASE
					AND ov.value COLLATE NOCASE IN (%s))`, marks)
			args = append(args, g.Name)
			for _, v := range g.Values {
				args = append(args, v)
			}
		}
		b.WriteString(")")
		where = append(where, b.String())
	}

	stmt := "SELECT p.id FROM products p"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY p.popularity_score DESC, p.id LIMIT ?"
	return stmt, append(args, limit)
}
