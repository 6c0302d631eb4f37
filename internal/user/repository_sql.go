package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const userColumns = `id, first_name, last_name, email, mobile, gender, status, profile, location, created_at, updated_at`

// SQLRepository stores users in a relational database through database/sql.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: storeNow}
}

// EnsureSchema creates the users table and its index when missing.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure users schema: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) Create(ctx context.Context, u User) (User, error) {
	now := r.now()
	id, err := newID(now)
	if err != nil {
		return User{}, err
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = StatusActive
	}

	phs := make([]string, 11)
	for i := range phs {
		phs[i] = r.dialect.placeholder(i + 1)
	}
	query := `INSERT INTO users (` + userColumns + `) VALUES (` + strings.Join(phs, ", ") + `)`

	_, err = r.db.ExecContext(ctx, query,
		u.ID,
		u.FirstName,
		u.LastName,
		u.Email,
		u.Mobile,
		string(u.Gender),
		string(u.Status),
		nullable(u.Profile),
		u.Location,
		r.dialect.timeValue(u.CreatedAt),
		r.dialect.timeValue(u.UpdatedAt),
	)
	if err != nil {
		if r.dialect.uniqueViolation(err) {
			return User{}, ErrEmailExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ` + r.dialect.placeholder(1)
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (r *SQLRepository) Find(ctx context.Context, q Query) ([]User, error) {
	var args []any
	query := `SELECT ` + userColumns + ` FROM users` + r.dialect.where(q.Filter, &args) +
		` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		limit := r.dialect.placeholder(len(args))
		args = append(args, q.Offset)
		query += ` LIMIT ` + limit + ` OFFSET ` + r.dialect.placeholder(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

func (r *SQLRepository) Count(ctx context.Context, filter Cond) (int64, error) {
	var args []any
	query := `SELECT COUNT(*) FROM users` + r.dialect.where(filter, &args)

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

func (r *SQLRepository) Update(ctx context.Context, id string, p Patch) (User, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = "+r.dialect.placeholder(len(args)))
	}

	if p.FirstName != nil {
		set("first_name", *p.FirstName)
	}
	if p.LastName != nil {
		set("last_name", *p.LastName)
	}
	if p.Email != nil {
		set("email", *p.Email)
	}
	if p.Mobile != nil {
		set("mobile", *p.Mobile)
	}
	if p.Gender != nil {
		set("gender", string(*p.Gender))
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.Location != nil {
		set("location", *p.Location)
	}
	if p.Profile != nil {
		set("profile", *p.Profile)
	}
	set("updated_at", r.dialect.timeValue(r.now()))

	args = append(args, id)
	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + r.dialect.placeholder(len(args)) +
		` RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return User{}, ErrNotFound
		case r.dialect.uniqueViolation(err):
			return User{}, ErrEmailExists
		default:
			return User{}, fmt.Errorf("update user %s: %w", id, err)
		}
	}
	return u, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) (User, error) {
	query := `DELETE FROM users WHERE id = ` + r.dialect.placeholder(1) + ` RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("delete user %s: %w", id, err)
	}
	return u, nil
}

func scanUser(scanner rowScanner) (User, error) {
	var (
		u       User
		gender  string
		status  string
		profile sql.NullString
	)
	if err := scanner.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Mobile,
		&gender,
		&status,
		&profile,
		&u.Location,
		timestamp{&u.CreatedAt},
		timestamp{&u.UpdatedAt},
	); err != nil {
		return User{}, err
	}

	u.Gender = Gender(gender)
	u.Status = Status(status)
	if profile.Valid {
		u.Profile = &profile.String
	}
	return u, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// timestamp scans TIMESTAMPTZ values as well as the RFC 3339 text SQLite
// stores.
type timestamp struct {
	t *time.Time
}

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (ts timestamp) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*ts.t = t.UTC()
	return nil
}
