package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/usersapi/usersapi/internal/model"
)

// ErrUserNotFound is returned when no user row matches the id.
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, first_name, last_name, state`

// ListAll returns every user ordered by id.
func (r *Repository) ListAll(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUsers(rows)
}

// ListByState returns users whose state matches exactly.
func (r *Repository) ListByState(ctx context.Context, state string) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE state = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by state: %w", err)
	}
	return collectUsers(rows)
}

// FindByID retrieves a user by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// Update replaces the attributes of the user with user.ID. It never inserts;
// an unknown id returns ErrUserNotFound.
func (r *Repository) Update(ctx context.Context, user *model.User) (*model.User, error) {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, state = $4
		WHERE id = $1
		RETURNING ` + userColumns

	updated, err := scanUser(r.pool.QueryRow(ctx, query, user.ID, user.FirstName, user.LastName, user.State))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return updated, nil
}

// Upsert replaces the attributes of an existing user, or inserts a new row
// with a generated id when user.ID is zero or unknown. inserted reports
// which branch ran.
func (r *Repository) Upsert(ctx context.Context, user *model.User) (saved *model.User, inserted bool, err error) {
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if user.ID != 0 {
			update := `
				UPDATE users
				SET first_name = $2, last_name = $3, state = $4
				WHERE id = $1
				RETURNING ` + userColumns

			u, err := scanUser(tx.QueryRow(ctx, update, user.ID, user.FirstName, user.LastName, user.State))
			if err == nil {
				saved = u
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
		}

		insert := `
			INSERT INTO users (first_name, last_name, state)
			VALUES ($1, $2, $3)
			RETURNING ` + userColumns

		u, err := scanUser(tx.QueryRow(ctx, insert, user.FirstName, user.LastName, user.State))
		if err != nil {
			return err
		}
		saved = u
		inserted = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to save user: %w", err)
	}

	return saved, inserted, nil
}

// DeleteByID removes a user. Returns ErrUserNotFound if no row was deleted.
func (r *Repository) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.State); err != nil {
		return nil, err
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}
