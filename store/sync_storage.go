package store

import (
	"context"
	"errors"
	"time"

	"github.com/novaclub/club-sync/catalog"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrExists        = errors.New("record already exists")
	ErrForeignRecord = errors.New("record id belongs to another club")
	ErrEmailTaken    = errors.New("email already registered")
	// ErrUnavailable marks failures of the store itself, as opposed to
	// failures of a single write.
	ErrUnavailable = errors.New("store unavailable")
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

type WriteMode int

const (
	Upsert WriteMode = iota
	CreateOnly
	UpdateOnly
)

// Record is one stored entity row. Fields holds every declared column of the
// kind's schema, including the base columns.
type Record struct {
	Kind   catalog.Kind
	ID     string
	Fields catalog.Fields
}

func (r *Record) ClubID() string {
	return r.Fields.Str(catalog.ColClubID)
}

func (r *Record) UpdatedAt() time.Time {
	return r.Fields.Time(catalog.ColUpdatedAt)
}

type Club struct {
	ID        string
	Name      string
	Address   string
	Phone     string
	Email     string
	LogoURL   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleSecretary Role = "SECRETARY"
	RoleCoach     Role = "COACH"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleSecretary, RoleCoach:
		return r, true
	}
	return "", false
}

type User struct {
	ID             string
	ClubID         string
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	Phone          string
	Role           Role
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type SyncStorage interface {
	// ListChanges returns the club's records of kind, restricted to those
	// updated strictly after since when since is not nil.
	ListChanges(ctx context.Context, kind catalog.Kind, clubID string, since *time.Time) ([]Record, error)
	GetRecord(ctx context.Context, kind catalog.Kind, clubID, id string) (*Record, error)
	// SetRecord creates or updates one record in its own transaction.
	SetRecord(ctx context.Context, kind catalog.Kind, clubID, id string, fields catalog.Fields, mode WriteMode) (*Record, Action, error)
	DeleteRecord(ctx context.Context, kind catalog.Kind, clubID, id string) error

	CreateClub(ctx context.Context, club *Club, admin *User) error
	GetClub(ctx context.Context, id string) (*Club, error)
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, clubID string) ([]User, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, clubID, id string) error

	Close() error
}
