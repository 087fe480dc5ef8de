package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/novaclub/club-sync/store"
)

const userColumns = "id, club_id, email, hashed_password, first_name, last_name, phone, role, is_active, created_at, updated_at"

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(store.TextTimestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(store.TextTimestampLayout, s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*store.User, error) {
	var u store.User
	var role, createdAt, updatedAt string
	err := row.Scan(&u.ID, &u.ClubID, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.Phone, &role, &u.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = store.Role(role)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func emailTaken(ctx context.Context, q queryer, email, exceptID string) (bool, error) {
	var id string
	err := q.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ? AND id <> ?", email, exceptID).Scan(&id)
	if err == sql.ErrNoRows {
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
	_, err = q.ExecContext(ctx, "INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.ClubID, u.Email, u.HashedPassword, u.FirstName, u.LastName, u.Phone, string(u.Role), u.IsActive,
		formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLiteSyncStorage) CreateClub(ctx context.Context, club *store.Club, admin *store.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback()

	if club.ID == "" {
		club.ID = store.NewID()
	}
	now := store.Now()
	club.CreatedAt, club.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx,
		"INSERT INTO clubs (id, name, address, phone, email, logo_url, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		club.ID, club.Name, club.Address, club.Phone, club.Email, club.LogoURL, club.IsActive, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to insert club: %w", err)
	}
	if admin != nil {
		admin.ClubID = club.ID
		if err := insertUser(ctx, tx, admin); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteSyncStorage) GetClub(ctx context.Context, id string) (*store.Club, error) {
	var c store.Club
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, address, phone, email, logo_url, is_active, created_at, updated_at FROM clubs WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.LogoURL, &c.IsActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get club: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteSyncStorage) CreateUser(ctx context.Context, user *store.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback()
	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteSyncStorage) GetUser(ctx context.Context, id string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteSyncStorage) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteSyncStorage) ListUsers(ctx context.Context, clubID string) ([]store.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE club_id = ? ORDER BY created_at, id", clubID)
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

func (s *SQLiteSyncStorage) UpdateUser(ctx context.Context, user *store.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback()

	taken, err := emailTaken(ctx, tx, user.Email, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return store.ErrEmailTaken
	}
	user.UpdatedAt = store.Now()
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET email = ?, hashed_password = ?, first_name = ?, last_name = ?, phone = ?, role = ?, is_active = ?, updated_at = ? WHERE club_id = ? AND id = ?",
		user.Email, user.HashedPassword, user.FirstName, user.LastName, user.Phone, string(user.Role), user.IsActive,
		formatTime(user.UpdatedAt), user.ClubID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteSyncStorage) DeleteUser(ctx context.Context, clubID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE club_id = ? AND id = ?", clubID, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
