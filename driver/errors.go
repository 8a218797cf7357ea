package driver

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// IsUniqueViolation reports whether err is a uniqueness-constraint
// violation surfaced by any supported backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Code == "23505"
	}
	var mye *mysql.MySQLError
	if errors.As(err, &mye) {
		return mye.Number == mysqlDupEntry
	}
	// modernc.org/sqlite reports constraint failures in the message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err is a foreign-key-constraint
// violation surfaced by any supported backend.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Code == "23503"
	}
	var mye *mysql.MySQLError
	if errors.As(err, &mye) {
		return mye.Number == mysqlRowIsReferenced || mye.Number == mysqlNoReferencedRow
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// IsConstraintViolation reports whether err is any constraint violation.
func IsConstraintViolation(err error) bool {
	if IsUniqueViolation(err) || IsForeignKeyViolation(err) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Code.Class() == "23"
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// IsConnectionLost reports whether err indicates the connection to the
// store was lost or the operation was cancelled mid-flight.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		// Class 08: connection exceptions.
		return pqe.Code.Class() == "08"
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// ConstraintName extracts the violated constraint's name when the
// backend reports one, or "" otherwise.
func ConstraintName(err error) string {
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Constraint
	}
	return ""
}
