// Package sqlite implements the user store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/usersapi/usersapi/internal/model"
	"github.com/usersapi/usersapi/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_users_state ON users(state);
`

const userColumns = `id, first_name, last_name, state`

// Store is a user store backed by database/sql.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a sqlite database at path and ensures the schema.
// path is a plain filename or a "file:" URI. The path ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if file := dbFile(path); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := New(db)
	if err := store.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing handle. Callers own schema creation via Init.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the users table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite db: %w", err)
	}
	return nil
}

// dbFile returns the filesystem path named by dsn, or "" when dsn names an
// in-memory database.
func dbFile(dsn string) string {
	path := dsn
	if strings.HasPrefix(strings.ToLower(path), "file:") {
		path = strings.TrimPrefix(path[len("file:"):], "//")
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return ""
		}
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

// ListAll returns every user ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

// ListByState returns users whose state matches exactly, ordered by id.
func (s *Store) ListByState(ctx context.Context, state string) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE state = ? ORDER BY id`, state)
	if err != nil {
		return nil, fmt.Errorf("list users by state: %w", err)
	}
	return collectUsers(rows)
}

// FindByID retrieves a user by id.
func (s *Store) FindByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	var user model.User
	if err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.State); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// Update replaces the attributes of the row for user.ID. It never inserts;
// an unknown id returns repository.ErrUserNotFound.
func (s *Store) Update(ctx context.Context, user *model.User) (*model.User, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET first_name=?, last_name=?, state=?
WHERE id=?`,
		user.FirstName,
		user.LastName,
		user.State,
		user.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user rows: %w", err)
	}
	if n == 0 {
		return nil, repository.ErrUserNotFound
	}
	return user.Clone(), nil
}

// Upsert updates the row for user.ID when it exists, otherwise inserts a new
// row and lets SQLite assign the id. inserted reports which branch ran.
func (s *Store) Upsert(ctx context.Context, user *model.User) (saved *model.User, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	saved = user.Clone()

	updated := false
	if user.ID != 0 {
		res, err := tx.ExecContext(ctx, `
UPDATE users SET first_name=?, last_name=?, state=?
WHERE id=?`,
			user.FirstName,
			user.LastName,
			user.State,
			user.ID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("update user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, false, fmt.Errorf("update user rows: %w", err)
		}
		updated = n > 0
	}

	if !updated {
		res, err := tx.ExecContext(ctx, `
INSERT INTO users (first_name, last_name, state)
VALUES (?, ?, ?)`,
			user.FirstName,
			user.LastName,
			user.State,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("last insert id: %w", err)
		}
		saved.ID = id
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return saved, !updated, nil
}

// DeleteByID removes a user. Returns repository.ErrUserNotFound if no row
// was deleted.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if n == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func collectUsers(rows *sql.Rows) ([]*model.User, error) {
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.FirstName, &user.LastName, &user.State); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
