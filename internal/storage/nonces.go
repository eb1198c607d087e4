package storage

import (
	"context"
	"time"
)

func (p *SQLProvider) CreateNonce(ctx context.Context, nonce string, expiresAt time.Time) error {
	query := `INSERT INTO nonces (nonce, expires_at) VALUES (?, ?)`
	_, err := p.db.ExecContext(ctx, query, nonce, expiresAt)
	return err
}

func (p *SQLProvider) ExistsNonce(ctx context.Context, nonce string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM nonces WHERE nonce = ? AND expires_at > ?`
	if err := p.db.GetContext(ctx, &count, query, nonce, time.Now().UTC()); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConsumeNonce deletes the nonce, returning whether it still existed.
func (p *SQLProvider) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	query := `DELETE FROM nonces WHERE nonce = ? AND expires_at > ?`
	res, err := p.db.ExecContext(ctx, query, nonce, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (p *SQLProvider) ExpireNonces(ctx context.Context, now time.Time) error {
	query := `DELETE FROM nonces WHERE expires_at <= ?`
	_, err := p.db.ExecContext(ctx, query, now)
	return err
}
