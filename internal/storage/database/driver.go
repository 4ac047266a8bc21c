package database

import (
	"net/url"
	"strconv"
	"strings"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// DetectDriver picks the backend from a connection string. Anything that is
// not a postgres URL is treated as a SQLite file path.
func DetectDriver(dsn string) Driver {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// sqliteDSN turns a path or sqlite:// URL into a mattn DSN with foreign keys
// enforced on every pooled connection.
func sqliteDSN(dsn string) (dsnOut string, path string) {
	path = strings.TrimPrefix(dsn, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")

	sep := "?"
	base := "file:" + strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "file:")
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode(), path
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
