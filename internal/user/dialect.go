package user

import (
	"database/sql/driver"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// sqliteFold is a Unicode-aware lower() for SQLite, whose built-in lower()
// and LIKE only fold ASCII letters.
const sqliteFold = "user_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteFold, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// Dialect adapts SQLRepository to one SQL engine: placeholders, the
// case-insensitive substring operator, timestamp encoding and constraint
// error detection.
type Dialect struct {
	Name string

	placeholder     func(n int) string
	contains        func(column, placeholder string) string
	fold            func(pattern string) string
	timeValue       func(t time.Time) any
	uniqueViolation func(err error) bool
	schema          []string
}

var Postgres = Dialect{
	Name:        "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	contains: func(column, ph string) string {
		return column + ` ILIKE ` + ph + ` ESCAPE '\'`
	},
	fold:      func(s string) string { return s },
	timeValue: func(t time.Time) any { return t.UTC() },
	uniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			mobile TEXT NOT NULL,
			gender TEXT NOT NULL CHECK (gender IN ('Male', 'Female')),
			status TEXT NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'InActive')),
			profile TEXT,
			location TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at DESC, id DESC)`,
	},
}

// SQLite stores timestamps as fixed-width UTC text so that ordering by the
// column is chronological.
var SQLite = Dialect{
	Name:        "sqlite",
	placeholder: func(int) string { return "?" },
	contains: func(column, ph string) string {
		return sqliteFold + `(` + column + `) LIKE ` + ph + ` ESCAPE '\'`
	},
	fold:      strings.ToLower,
	timeValue: func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
	uniqueViolation: func(err error) bool {
		var sqliteErr *sqlite.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		code := sqliteErr.Code()
		// without extended result codes only the primary code is reported
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"))
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			mobile TEXT NOT NULL,
			gender TEXT NOT NULL CHECK (gender IN ('Male', 'Female')),
			status TEXT NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'InActive')),
			profile TEXT,
			location TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at DESC, id DESC)`,
	},
}

const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// DialectFor returns the dialect registered under a store driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	default:
		return Dialect{}, errors.New("no sql dialect for driver " + strconv.Quote(driver))
	}
}

var columns = map[Field]string{
	FieldFirstName: "first_name",
	FieldLastName:  "last_name",
	FieldEmail:     "email",
	FieldLocation:  "location",
	FieldStatus:    "status",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where renders c as a WHERE clause, appending bind values to args.
func (d Dialect) where(c Cond, args *[]any) string {
	if clause := d.compile(c, args); clause != "" {
		return " WHERE " + clause
	}
	return ""
}

func (d Dialect) compile(c Cond, args *[]any) string {
	switch v := c.(type) {
	case Contains:
		col, ok := columns[v.Field]
		if !ok {
			return ""
		}
		*args = append(*args, d.fold("%"+likeEscaper.Replace(v.Term)+"%"))
		return d.contains(col, d.placeholder(len(*args)))
	case Equals:
		col, ok := columns[v.Field]
		if !ok {
			return ""
		}
		*args = append(*args, v.Value)
		return col + " = " + d.placeholder(len(*args))
	case AnyOf:
		return d.join(v, " OR ", args)
	case AllOf:
		return d.join(v, " AND ", args)
	default:
		return ""
	}
}

func (d Dialect) join(conds []Cond, op string, args *[]any) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if clause := d.compile(c, args); clause != "" {
			parts = append(parts, clause)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, op) + ")"
	}
}
