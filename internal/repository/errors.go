// Package repository persists seat states, holds and bookings in MySQL.
// The repositories implement the store interfaces of the inventory, hold
// and booking packages, so every in-memory transition is written through
// before it is acknowledged.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an insert collides with an existing row,
// such as a second booking for the same hold.  Handlers translate it into
// an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for a unique key
// violation.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// timeLayout is the DATETIME format used for bound parameters.
const timeLayout = "2006-01-02 15:04:05"
