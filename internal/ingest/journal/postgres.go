package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/lib/pq"

	txcontext "iplist/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Postgres persists entries in the ingestions table. A changing ingestion also
// bumps category_totals in the same transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, e Entry) error {
	e = withDefaults(e)
	return txcontext.Run(ctx, p.db, func(ctx context.Context) error {
		exec := txcontext.Exec(ctx, p.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO ingestions (
				id, request_id, input, domain, category, status, kind, message,
				ip4, ip6, resolver, degraded, commit_sha, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			e.ID, e.RequestID, e.Input, e.Domain, e.Category, e.Status, e.Kind, e.Message,
			pq.Array(e.IP4), pq.Array(e.IP6), e.Resolver, e.Degraded, e.Commit, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ingestion: %w", err)
		}
		if !changed(e.Status) {
			return nil
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO category_totals (category, ingestions, updated_at)
			VALUES ($1, 1, $2)
			ON CONFLICT (category) DO UPDATE
			SET ingestions = category_totals.ingestions + 1, updated_at = EXCLUDED.updated_at`,
			e.Category, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("bump category total: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := txcontext.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT id, request_id, input, domain, category, status, kind, message,
		       ip4, ip6, resolver, degraded, commit_sha, created_at
		FROM ingestions
		ORDER BY created_at DESC, id
		LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.RequestID, &e.Input, &e.Domain, &e.Category, &e.Status, &e.Kind, &e.Message,
			pq.Array(&e.IP4), pq.Array(&e.IP6), &e.Resolver, &e.Degraded, &e.Commit, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ingestion: %w", err)
		}
		if e.IP4 == nil {
			e.IP4 = []string{}
		}
		if e.IP6 == nil {
			e.IP6 = []string{}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	return out, nil
}

func (p *Postgres) Totals(ctx context.Context) (map[string]int, error) {
	rows, err := txcontext.Exec(ctx, p.db).QueryContext(ctx, `SELECT category, ingestions FROM category_totals`)
	if err != nil {
		return nil, fmt.Errorf("list category totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out[category] = n
	}
	return out, rows.Err()
}
