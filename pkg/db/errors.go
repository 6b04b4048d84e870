package db

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the repositories translate
const (
	ErrNumDuplicateEntry  = 1062
	ErrNumNoReferencedRow = 1452
	ErrNumLockWaitTimeout = 1205
	ErrNumDeadlock        = 1213
)

func errNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// IsDuplicate reports a unique key violation
func IsDuplicate(err error) bool {
	return errNumber(err) == ErrNumDuplicateEntry
}

// IsMissingReference reports a foreign key violation on insert or update
func IsMissingReference(err error) bool {
	return errNumber(err) == ErrNumNoReferencedRow
}

// IsTransient reports failures worth retrying: timeouts, dropped connections,
// lock waits and deadlocks
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	switch errNumber(err) {
	case ErrNumLockWaitTimeout, ErrNumDeadlock:
		return true
	}
	return false
}
