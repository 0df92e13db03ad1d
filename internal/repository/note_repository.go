package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/notes-auth/internal/model"
)

// NoteRepo provides data access methods for the notes table. Every mutating
// method takes the caller's id and enforces ownership itself.
type NoteRepo struct {
	db *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// Create inserts a new note.
func (r *NoteRepo) Create(ctx context.Context, n model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, owner_id, title, content, color, created_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.OwnerID, n.Title, n.Content, n.Color, n.CreatedAt)
	return err
}

// GetByID returns the note with the given id regardless of owner.
func (r *NoteRepo) GetByID(ctx context.Context, id string) (model.Note, bool, error) {
	var n model.Note
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, content, color, created_at FROM notes WHERE id = ?`, id).
		Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.Color, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Note{}, false, nil
	}
	if err != nil {
		return model.Note{}, false, err
	}
	return n, true, nil
}

// ListByOwner returns all notes owned by ownerID, newest first.
func (r *NoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, title, content, color, created_at FROM notes
		 WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.Color, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// UpdateByIDAndOwner overwrites title, content and color of the note and
// returns the stored result. It returns ErrNotFound when the note does not
// exist and ErrForbidden when it belongs to someone else. Id, owner and
// creation time never change.
func (r *NoteRepo) UpdateByIDAndOwner(ctx context.Context, n model.Note) (out model.Note, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Note{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current model.Note
	if err = tx.QueryRowContext(ctx,
		`SELECT id, owner_id, title, content, color, created_at FROM notes WHERE id = ? FOR UPDATE`, n.ID).
		Scan(&current.ID, &current.OwnerID, &current.Title, &current.Content, &current.Color, &current.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return model.Note{}, err
	}
	if current.OwnerID != n.OwnerID {
		err = ErrForbidden
		return model.Note{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, color = ? WHERE id = ?`,
		n.Title, n.Content, n.Color, n.ID); err != nil {
		return model.Note{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Note{}, err
	}

	current.Title, current.Content, current.Color = n.Title, n.Content, n.Color
	return current, nil
}

// DeleteByIDAndOwner deletes the note if it belongs to ownerID. It returns
// ErrNotFound when the note does not exist and ErrForbidden when it belongs
// to someone else.
func (r *NoteRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var dbOwnerID string
	if err = tx.QueryRowContext(ctx, `SELECT owner_id FROM notes WHERE id = ? FOR UPDATE`, id).Scan(&dbOwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		err = ErrForbidden
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
