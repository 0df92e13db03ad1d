package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/notes-auth/internal/model"
)

// TokenRepo persists refresh token records in MySQL. Only the digest of a
// token is stored; (user_id, token_hash) is unique.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Save inserts a refresh record.
func (r *TokenRepo) Save(ctx context.Context, rec model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		rec.UserID, rec.TokenHash, rec.ExpiresAt, rec.CreatedAt)
	return err
}

// Find returns the record for (userID, tokenHash), expired or not.
func (r *TokenRepo) Find(ctx context.Context, userID, tokenHash string) (model.RefreshToken, bool, error) {
	var rec model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE user_id=? AND token_hash=? LIMIT 1",
		userID, tokenHash).Scan(&rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, false, nil
	}
	if err != nil {
		return model.RefreshToken{}, false, err
	}
	return rec, true, nil
}

// Delete removes a single record. Deleting a missing record is not an error.
func (r *TokenRepo) Delete(ctx context.Context, userID, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=? AND token_hash=?",
		userID, tokenHash)
	return err
}

// Rotate deletes the record oldHash and inserts next in one transaction.
// The row lock taken by DELETE serialises concurrent rotations of the same
// record; whoever deletes zero rows lost and gets false.
func (r *TokenRepo) Rotate(ctx context.Context, userID, oldHash string, next model.RefreshToken) (ok bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !ok {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=? AND token_hash=?",
		userID, oldHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		next.UserID, next.TokenHash, next.ExpiresAt, next.CreatedAt); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rotation: %w", err)
	}
	return true, nil
}

// DeleteExpired removes every record whose expiry is at or before now and
// reports how many were removed.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
