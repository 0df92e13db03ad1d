// Package repository holds the MySQL and Redis stores. The sentinel values
// below let higher layers such as handlers distinguish failure scenarios
// without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned by UserRepo.Create when the email is already
// registered. It is decided by the unique index, so concurrent sign-ups for
// the same address have exactly one winner.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when the addressed record does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate it into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

const mysqlErrDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry
}
