package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jdholdren/karmabot/internal/core/models"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrStoreUnavailable is returned when the backing file cannot be opened or created
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSchemaAlreadyExists is returned by InitSchema when the users table is present
	ErrSchemaAlreadyExists = errors.New("schema already exists")
	// ErrStoreWrite is returned when an insert or update could not be committed
	ErrStoreWrite = errors.New("store write failed")
)

const schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE,
	karma INTEGER
);
`

// DB reads and writes the users table. Every write runs in its own transaction.
type DB struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the sqlite file at path using the named driver.
// The pool is pinned to a single connection so store operations never overlap.
func Open(driver, path string) (*sqlx.DB, error) {
	sqlDB, err := sqlx.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening %s: %s", ErrStoreUnavailable, path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: error connecting to %s: %s", ErrStoreUnavailable, path, err)
	}

	return sqlDB, nil
}

// New wraps a handle returned by Open
func New(conn *sqlx.DB) DB {
	return DB{db: conn}
}

// InitSchema creates the users table. It is not idempotent.
func (db DB) InitSchema(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, schema); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("%w: %s", ErrSchemaAlreadyExists, err)
		}
		return fmt.Errorf("error creating users table: %w", err)
	}

	return nil
}

// FindByName looks up a user by exact nickname; the bool reports whether one was found
func (db DB) FindByName(ctx context.Context, name string) (models.UserKarma, bool, error) {
	q := `
	SELECT id, name, karma FROM users WHERE name = ? LIMIT 1;
	`

	u := models.UserKarma{}
	if err := db.db.GetContext(ctx, &u, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserKarma{}, false, nil
		}
		return models.UserKarma{}, false, fmt.Errorf("error retrieving user: %w", err)
	}

	return u, true, nil
}

// Insert creates a user with zero karma
func (db DB) Insert(ctx context.Context, name string) (models.UserKarma, error) {
	q := `
	INSERT INTO users (name, karma) VALUES (?, 0);
	`

	var id int64
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, name)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return models.UserKarma{}, fmt.Errorf("error inserting user %q: %w", name, err)
	}

	return models.UserKarma{ID: id, Name: name}, nil
}

// UpdateKarma sets the karma of the user with the given id
func (db DB) UpdateKarma(ctx context.Context, id, karma int64) error {
	q := `
	UPDATE users SET karma = ? WHERE id = ?;
	`

	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, karma, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("error updating karma for user %d: %w", id, err)
	}

	return nil
}

// ListTop returns up to n users with the most karma
func (db DB) ListTop(ctx context.Context, n int) ([]models.UserKarma, error) {
	return db.list(ctx, "DESC", n)
}

// ListBottom returns up to n users with the least karma
func (db DB) ListBottom(ctx context.Context, n int) ([]models.UserKarma, error) {
	return db.list(ctx, "ASC", n)
}

func (db DB) list(ctx context.Context, order string, n int) ([]models.UserKarma, error) {
	q := fmt.Sprintf(`
	SELECT id, name, karma FROM users ORDER BY karma %s LIMIT ?;
	`, order)

	us := make([]models.UserKarma, 0, n)
	if err := db.db.SelectContext(ctx, &us, q, n); err != nil {
		return nil, fmt.Errorf("error retrieving users: %w", err)
	}

	return us, nil
}

// Close releases the underlying connection
func (db DB) Close() error {
	return db.db.Close()
}

// Runs fn in its own transaction, committing on success and rolling back otherwise
func (db DB) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: error beginning transaction: %s", ErrStoreWrite, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w: %s (rollback failed: %s)", ErrStoreWrite, err, rbErr)
		}
		return fmt.Errorf("%w: %s", ErrStoreWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: error committing: %s", ErrStoreWrite, err)
	}

	return nil
}
