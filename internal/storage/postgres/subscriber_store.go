package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const defaultSubscriberTable = "subscribers"

// Directory reads subscribers owned by the user service.
type Directory struct {
	pool  Pool
	table string
}

// NewDirectory constructs a Directory over pool.
func NewDirectory(pool Pool, table string) (*Directory, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, defaultSubscriberTable)
	if err != nil {
		return nil, err
	}
	return &Directory{pool: pool, table: table}, nil
}

// FindByInterest returns subscribers whose interests contain category.
func (d *Directory) FindByInterest(ctx context.Context, category string) ([]posting.Subscriber, error) {
	query := fmt.Sprintf(`
SELECT id, email, interests, push_tokens, email_enabled, push_enabled
FROM %s
WHERE $1 = ANY(interests)
ORDER BY id`, d.table)

	rows, err := d.pool.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var out []posting.Subscriber
	for rows.Next() {
		var s posting.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Interests, &s.PushTokens, &s.Settings.Email, &s.Settings.Push); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return out, nil
}
