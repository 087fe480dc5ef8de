package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/store"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var dialect = store.Dialect{
	Placeholder: store.Dollar,
	LockRows:    true,
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PgSyncStorage struct {
	db *pgxpool.Pool
}

func NewPGSyncStorage(databaseURL string) (*PgSyncStorage, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database %w", err)
	}
	defer db.Close()
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver %w", err)
	}

	migrationDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver %w", err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", migrationDriver,
		"club-sync", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate migrations %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("failed to run migrations %w", err)
	}

	pgxPool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New(%v): %w", databaseURL, err)
	}
	return &PgSyncStorage{db: pgxPool}, nil
}

func (s *PgSyncStorage) Close() error {
	s.db.Close()
	return nil
}

func (s *PgSyncStorage) ListChanges(ctx context.Context, kind catalog.Kind, clubID string, since *time.Time) ([]store.Record, error) {
	schema := kind.Schema()
	args := []any{clubID}
	if since != nil {
		args = append(args, dialect.BindTime(*since))
	}
	rows, err := s.db.Query(ctx, dialect.ListSQL(schema, since != nil), args...)
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

func (s *PgSyncStorage) GetRecord(ctx context.Context, kind catalog.Kind, clubID, id string) (*store.Record, error) {
	return getRecord(ctx, s.db, kind, clubID, id, false)
}

func getRecord(ctx context.Context, q queryer, kind catalog.Kind, clubID, id string, forWrite bool) (*store.Record, error) {
	schema := kind.Schema()
	targets := dialect.ScanTargets(schema)
	err := q.QueryRow(ctx, dialect.GetSQL(schema, forWrite), clubID, id).Scan(targets...)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", schema.Table, err)
	}
	return dialect.Record(kind, targets)
}

func (s *PgSyncStorage) SetRecord(ctx context.Context, kind catalog.Kind, clubID, id string, fields catalog.Fields, mode store.WriteMode) (*store.Record, store.Action, error) {
	schema := kind.Schema()
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted,
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback(context.Background())

	// lock the existing row so concurrent writes of the same id serialize
	existing, err := getRecord(ctx, tx, kind, clubID, id, true)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, "", err
	}
	if existing == nil {
		if mode == store.UpdateOnly {
			return nil, "", store.ErrNotFound
		}
		var owner string
		err = tx.QueryRow(ctx, dialect.OwnerSQL(schema), id).Scan(&owner)
		if err == nil {
			return nil, "", store.ErrForeignRecord
		}
		if err != pgx.ErrNoRows {
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
		_, err = tx.Exec(ctx, dialect.InsertSQL(schema), dialect.InsertArgs(schema, row)...)
	} else {
		_, err = tx.Exec(ctx, dialect.UpdateSQL(schema), dialect.UpdateArgs(schema, row)...)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to write %s record: %w", schema.Table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &store.Record{Kind: kind, ID: id, Fields: row}, action, nil
}

func (s *PgSyncStorage) DeleteRecord(ctx context.Context, kind catalog.Kind, clubID, id string) error {
	tag, err := s.db.Exec(ctx, dialect.DeleteSQL(kind.Schema()), clubID, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
