package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/store"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var dialect = store.Dialect{
	Placeholder: store.QuestionMark,
	TimeAsText:  true,
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type SQLiteSyncStorage struct {
	db *sql.DB
}

// NewSQLiteSyncStorage opens file, enabling foreign keys, and brings the
// schema up to date.
func NewSQLiteSyncStorage(file string) (*SQLiteSyncStorage, error) {
	dsn := file
	if !strings.Contains(dsn, "_foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite3 database %w", err)
	}
	// sqlite allows a single writer; one connection serializes record writes
	db.SetMaxOpenConns(1)

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver %w", err)
	}
	migrationDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", migrationDriver, "club-sync", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate migrations %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("failed to run migrations %w", err)
	}
	return &SQLiteSyncStorage{db: db}, nil
}

func (s *SQLiteSyncStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteSyncStorage) ListChanges(ctx context.Context, kind catalog.Kind, clubID string, since *time.Time) ([]store.Record, error) {
	schema := kind.Schema()
	args := []any{clubID}
	if since != nil {
		args = append(args, dialect.BindTime(*since))
	}
	rows, err := s.db.QueryContext(ctx, dialect.ListSQL(schema, since != nil), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", schema.Table, err)
	}
	defer rows.Close()

	records := make([]store.Record, 0)
	for rows.Next() {
		targets := dialect.ScanTargets(schema)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", schema.Table, err)
		}
		record, err := dialect.Record(kind, targets)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", schema.Table, err)
	}
	return records, nil
}

func (s *SQLiteSyncStorage) GetRecord(ctx context.Context, kind catalog.Kind, clubID, id string) (*store.Record, error) {
	return getRecord(ctx, s.db, kind, clubID, id)
}

func getRecord(ctx context.Context, q queryer, kind catalog.Kind, clubID, id string) (*store.Record, error) {
	schema := kind.Schema()
	targets := dialect.ScanTargets(schema)
	err := q.QueryRowContext(ctx, dialect.GetSQL(schema, true), clubID, id).Scan(targets...)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", schema.Table, err)
	}
	return dialect.Record(kind, targets)
}

func (s *SQLiteSyncStorage) SetRecord(ctx context.Context, kind catalog.Kind, clubID, id string, fields catalog.Fields, mode store.WriteMode) (*store.Record, store.Action, error) {
	schema := kind.Schema()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback()

	existing, err := getRecord(ctx, tx, kind, clubID, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, "", err
	}
	if existing == nil {
		if mode == store.UpdateOnly {
			return nil, "", store.ErrNotFound
		}
		var owner string
		err = tx.QueryRowContext(ctx, dialect.OwnerSQL(schema), id).Scan(&owner)
		if err == nil {
			return nil, "", store.ErrForeignRecord
		}
		if err != sql.ErrNoRows {
			return nil, "", fmt.Errorf("failed to check record owner: %w", err)
		}
	} else if mode == store.CreateOnly {
		return nil, "", store.ErrExists
	}

	now, release := store.BeginWrite()
	defer release()
	row, action, err := store.BuildRow(kind, existing, clubID, id, fields, now)
	if err != nil {
		return nil, "", err
	}
	if action == store.ActionCreated {
		_, err = tx.ExecContext(ctx, dialect.InsertSQL(schema), dialect.InsertArgs(schema, row)...)
	} else {
		_, err = tx.ExecContext(ctx, dialect.UpdateSQL(schema), dialect.UpdateArgs(schema, row)...)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to write %s record: %w", schema.Table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &store.Record{Kind: kind, ID: id, Fields: row}, action, nil
}

func (s *SQLiteSyncStorage) DeleteRecord(ctx context.Context, kind catalog.Kind, clubID, id string) error {
	res, err := s.db.ExecContext(ctx, dialect.DeleteSQL(kind.Schema()), clubID, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", kind, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
