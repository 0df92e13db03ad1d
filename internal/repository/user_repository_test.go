package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/notes-auth/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestUserRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	u := model.User{ID: "u-1", Email: "a@x.io", PasswordHash: "h", CreatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, email, password_hash, created_at) VALUES (?,?,?,?)")).
		WithArgs("u-1", "a@x.io", "h", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
}

func TestUserRepo_Create_Duplicate(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.io' for key 'uq_users_email'"})

	err := NewUserRepo(db).Create(context.Background(), model.User{ID: "u-1", Email: "a@x.io"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_Create_OtherError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(boom)

	err := NewUserRepo(db).Create(context.Background(), model.User{ID: "u-1"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_FindByEmail(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id,email,password_hash,created_at FROM users WHERE email=\?`).
		WithArgs("a@x.io").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u-1", "a@x.io", "h", now))

	u, found, err := NewUserRepo(db).FindByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.User{ID: "u-1", Email: "a@x.io", PasswordHash: "h", CreatedAt: now}, u)
}

func TestUserRepo_FindByID_NotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM users WHERE id=\?`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))

	_, found, err := NewUserRepo(db).FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUserRepo_FindByID_Error(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectQuery(`FROM users WHERE id=\?`).WillReturnError(boom)

	_, found, err := NewUserRepo(db).FindByID(context.Background(), "u-1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, found)
}
