package storage

import (
	"context"
)

const defaultEventLimit = 200

// ListEvents returns audit events, newest first. Events are append-only:
// there is deliberately no update or delete path in this package.
func (p *SQLProvider) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := `SELECT id, type, details, location, safety_checks, lock_id, user_id, created_at FROM events`
	var args []any
	var where []string

	if filter.LockID != "" {
		where = append(where, `lock_id = ?`)
		args = append(args, filter.LockID)
	}
	if filter.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		where = append(where, `type = ?`)
		args = append(args, filter.Type)
	}

	for i, clause := range where {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	var events []Event
	if err := p.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, err
	}
	return events, nil
}
