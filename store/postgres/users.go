package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/novaclub/club-sync/store"
)

const userColumns = "id, club_id, email, hashed_password, first_name, last_name, phone, role, is_active, created_at, updated_at"

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	var role string
	err := row.Scan(&u.ID, &u.ClubID, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.Phone, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = store.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func emailTaken(ctx context.Context, q queryer, email, exceptID string) (bool, error) {
	var id string
	err := q.QueryRow(ctx, "SELECT id FROM users WHERE email = $1 AND id <> $2", email, exceptID).Scan(&id)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return true, nil
}

func insertUser(ctx context.Context, q queryer, u *store.User) error {
	taken, err := emailTaken(ctx, q, u.Email, "")
	if err != nil {
		return err
	}
	if taken {
		return store.ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = store.NewID()
	}
	now := store.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err = q.Exec(ctx, "INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		u.ID, u.ClubID, u.Email, u.HashedPassword, u.FirstName, u.LastName, u.Phone, string(u.Role), u.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *PgSyncStorage) CreateClub(ctx context.Context, club *store.Club, admin *store.User) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback(context.Background())

	if club.ID == "" {
		club.ID = store.NewID()
	}
	now := store.Now()
	club.CreatedAt, club.UpdatedAt = now, now
	_, err = tx.Exec(ctx,
		"INSERT INTO clubs (id, name, address, phone, email, logo_url, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		club.ID, club.Name, club.Address, club.Phone, club.Email, club.LogoURL, club.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert club: %w", err)
	}
	if admin != nil {
		admin.ClubID = club.ID
		if err := insertUser(ctx, tx, admin); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PgSyncStorage) GetClub(ctx context.Context, id string) (*store.Club, error) {
	var c store.Club
	err := s.db.QueryRow(ctx,
		"SELECT id, name, address, phone, email, logo_url, is_active, created_at, updated_at FROM clubs WHERE id = $1", id).
		Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.LogoURL, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get club: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (s *PgSyncStorage) CreateUser(ctx context.Context, user *store.User) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback(context.Background())
	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PgSyncStorage) GetUser(ctx context.Context, id string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *PgSyncStorage) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *PgSyncStorage) ListUsers(ctx context.Context, clubID string) ([]store.User, error) {
	rows, err := s.db.Query(ctx, "SELECT "+userColumns+" FROM users WHERE club_id = $1 ORDER BY created_at, id", clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]store.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *PgSyncStorage) UpdateUser(ctx context.Context, user *store.User) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback(context.Background())

	taken, err := emailTaken(ctx, tx, user.Email, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return store.ErrEmailTaken
	}
	user.UpdatedAt = store.Now()
	tag, err := tx.Exec(ctx,
		"UPDATE users SET email = $1, hashed_password = $2, first_name = $3, last_name = $4, phone = $5, role = $6, is_active = $7, updated_at = $8 WHERE club_id = $9 AND id = $10",
		user.Email, user.HashedPassword, user.FirstName, user.LastName, user.Phone, string(user.Role), user.IsActive,
		user.UpdatedAt, user.ClubID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PgSyncStorage) DeleteUser(ctx context.Context, clubID, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM users WHERE club_id = $1 AND id = $2", clubID, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
