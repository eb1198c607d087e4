package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const userColumns = `id, email, name, password_hash, role, created_at, updated_at`

func (p *SQLProvider) CreateUser(ctx context.Context, user User) error {
	query := `INSERT INTO users (id, email, name, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := p.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		user.CreatedAt, user.UpdatedAt)
	return err
}

func (p *SQLProvider) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	if err := p.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (p *SQLProvider) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	if err := p.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (p *SQLProvider) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	if err := p.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

func (p *SQLProvider) UpdateUserRole(ctx context.Context, userID string, role Role) error {
	query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`
	res, err := p.db.ExecContext(ctx, query, role, time.Now().UTC(), userID)
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

func (p *SQLProvider) CountUsersByRole(ctx context.Context, role Role) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE role = ?`
	if err := p.db.GetContext(ctx, &count, query, role); err != nil {
		return 0, err
	}
	return count, nil
}
