package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const lockColumns = `id, name, location, status, access_code, safety_procedures, assigned_user_id, deleted, created_at, updated_at`

func (p *SQLProvider) GetLock(ctx context.Context, id string) (*Lock, error) {
	var lock Lock
	query := fmt.Sprintf(`SELECT %s FROM locks WHERE id = ?`, lockColumns)
	if err := p.db.GetContext(ctx, &lock, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lock, nil
}

func (p *SQLProvider) GetLockByCode(ctx context.Context, code string) (*Lock, error) {
	var lock Lock
	query := fmt.Sprintf(`SELECT %s FROM locks WHERE access_code = ?`, lockColumns)
	if err := p.db.GetContext(ctx, &lock, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lock, nil
}

func (p *SQLProvider) ListLocks(ctx context.Context) ([]Lock, error) {
	var locks []Lock
	query := fmt.Sprintf(`SELECT %s FROM locks WHERE deleted = 0 ORDER BY created_at DESC`, lockColumns)
	if err := p.db.SelectContext(ctx, &locks, query); err != nil {
		return nil, err
	}
	return locks, nil
}

func (p *SQLProvider) ListAssignedLocks(ctx context.Context, userID string) ([]Lock, error) {
	var locks []Lock
	query := fmt.Sprintf(`SELECT %s FROM locks WHERE assigned_user_id = ? AND status = ? AND deleted = 0 ORDER BY created_at DESC`, lockColumns)
	if err := p.db.SelectContext(ctx, &locks, query, userID, StatusInUse); err != nil {
		return nil, err
	}
	return locks, nil
}

func (p *SQLProvider) CreateLock(ctx context.Context, lock Lock) error {
	query := fmt.Sprintf(`INSERT INTO locks (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, lockColumns)
	_, err := p.db.ExecContext(ctx, query,
		lock.ID, lock.Name, lock.Location, lock.Status, lock.AccessCode,
		lock.SafetyProcedures, lock.AssignedUserID, lock.Deleted,
		lock.CreatedAt, lock.UpdatedAt)
	return err
}

func (p *SQLProvider) UpdateLock(ctx context.Context, lock Lock) error {
	query := `UPDATE locks SET name = ?, location = ?, access_code = ?, safety_procedures = ?, updated_at = ? WHERE id = ? AND deleted = 0`
	res, err := p.db.ExecContext(ctx, query,
		lock.Name, lock.Location, lock.AccessCode, lock.SafetyProcedures,
		time.Now().UTC(), lock.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *SQLProvider) CodeInUse(ctx context.Context, code string, excludeID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM locks WHERE access_code = ? AND id != ?`
	if err := p.db.GetContext(ctx, &count, query, code, excludeID); err != nil {
		return false, err
	}
	return count > 0, nil
}

// insertEvent appends an audit event inside an open transaction.
func insertEvent(ctx context.Context, tx *sqlx.Tx, event Event) error {
	query := `INSERT INTO events (id, type, details, location, safety_checks, lock_id, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, query,
		event.ID, event.Type, event.Details, event.Location,
		event.SafetyChecks, event.LockID, event.UserID, event.CreatedAt)
	return err
}

// transition runs the lock row update and the event insert as one commit.
// The returned row count is 0 when the update's status guard did not match,
// in which case nothing is written.
func (p *SQLProvider) transition(ctx context.Context, event Event, query string, args ...any) (int64, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		// Precondition no longer holds, leave the event log untouched.
		return 0, nil
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return rows, nil
}

func (p *SQLProvider) AssignLock(ctx context.Context, lockID string, userID string, event Event) (int64, error) {
	query := `UPDATE locks SET status = ?, assigned_user_id = ?, updated_at = ? WHERE id = ? AND status = ? AND deleted = 0`
	return p.transition(ctx, event, query,
		StatusInUse, userID, time.Now().UTC(), lockID, StatusAvailable)
}

func (p *SQLProvider) ReleaseLock(ctx context.Context, lockID string, userID string, event Event) (int64, error) {
	query := `UPDATE locks SET status = ?, assigned_user_id = NULL, updated_at = ? WHERE id = ? AND status = ? AND assigned_user_id = ? AND deleted = 0`
	return p.transition(ctx, event, query,
		StatusAvailable, time.Now().UTC(), lockID, StatusInUse, userID)
}

func (p *SQLProvider) SetLockStatus(ctx context.Context, lockID string, status LockStatus, clearAssignment bool, event Event) (int64, error) {
	if clearAssignment {
		query := `UPDATE locks SET status = ?, assigned_user_id = NULL, updated_at = ? WHERE id = ? AND deleted = 0`
		return p.transition(ctx, event, query, status, time.Now().UTC(), lockID)
	}
	query := `UPDATE locks SET status = ?, updated_at = ? WHERE id = ? AND deleted = 0`
	return p.transition(ctx, event, query, status, time.Now().UTC(), lockID)
}

func (p *SQLProvider) SoftDeleteLock(ctx context.Context, lockID string, event Event) (int64, error) {
	query := `UPDATE locks SET deleted = 1, status = ?, assigned_user_id = NULL, updated_at = ? WHERE id = ? AND deleted = 0 AND status IN (?, ?)`
	return p.transition(ctx, event, query,
		StatusRetired, time.Now().UTC(), lockID, StatusAvailable, StatusRetired)
}
