// Package repository holds the MySQL-backed stores. Each repository takes a
// database.DBTX so the same code runs against the pool or inside a
// transaction. Callers distinguish failure modes through the sentinel
// errors below rather than driver errors.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup or targeted update matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicate is returned when a unique key other than users.email
// rejects an insert, e.g. a second grant for the same (user, product).
var ErrDuplicate = errors.New("duplicate")

// ErrReferenceMissing is returned when a foreign key points at a row that
// does not exist.
var ErrReferenceMissing = errors.New("referenced row missing")

const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	mysqlNoReferencedRow2 = 1216
)

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func isMissingReference(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == mysqlNoReferencedRow || me.Number == mysqlNoReferencedRow2)
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// affectedOne returns ErrNotFound when res touched no rows.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
