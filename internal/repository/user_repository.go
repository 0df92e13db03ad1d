package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/notes-auth/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u. Emails are compared byte for byte; no normalisation is
// applied.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// FindByEmail fetches a user by exact email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, bool, error) {
	return r.findOne(ctx,
		"SELECT id,email,password_hash,created_at FROM users WHERE email=? LIMIT 1", email)
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (model.User, bool, error) {
	return r.findOne(ctx,
		"SELECT id,email,password_hash,created_at FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) findOne(ctx context.Context, query string, arg any) (model.User, bool, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	return u, true, nil
}
