package storage

import (
	"strconv"
	"strings"
)

// Dialect selects SQL driver and placeholder style
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor picks the dialect from a DSN: postgres URLs and key=value DSNs
// go to PostgreSQL, anything else is a SQLite file path.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	if strings.Contains(dsn, "host=") && strings.Contains(dsn, "dbname=") {
		return DialectPostgres
	}
	return DialectSQLite
}

func (d Dialect) driverName() string {
	return string(d)
}

// placeholder renders the n-th bind parameter
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// rebind rewrites ?-style placeholders for the dialect. Queries in this
// package never contain a literal question mark.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
