package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/novaclub/club-sync/catalog"
	"github.com/stretchr/testify/require"
)

type StoreTest struct{}

// NewTestClub creates a club with an admin account and returns the club id.
func NewTestClub(t *testing.T, storage SyncStorage) string {
	club := &Club{Name: "Judo Club " + uuid.NewString()[:8], IsActive: true}
	admin := &User{
		Email:          uuid.NewString() + "@example.com",
		HashedPassword: "x",
		FirstName:      "Ada",
		LastName:       "Admin",
		Role:           RoleAdmin,
		IsActive:       true,
	}
	require.NoError(t, storage.CreateClub(context.Background(), club, admin), "failed to create club")
	return club.ID
}

func TestMember(firstName string) catalog.Fields {
	return catalog.Fields{
		"first_name":        firstName,
		"last_name":         "Kano",
		"date_of_birth":     time.Date(2010, 5, 17, 0, 0, 0, 0, time.UTC),
		"gender":            "male",
		"category":          "minime",
		"monthly_fee":       float64(25),
		"registration_date": time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *StoreTest) TestAddRecords(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	clubID := NewTestClub(t, storage)
	a1, a2 := uuid.NewString(), uuid.NewString()

	r1, action, err := storage.SetRecord(ctx, catalog.Members, clubID, a1, TestMember("Jigoro"), Upsert)
	require.NoError(t, err, "failed to call SetRecord a1")
	require.Equal(t, ActionCreated, action)
	require.Equal(t, int64(1), r1.Fields.Int(catalog.ColSyncVersion))

	_, action, err = storage.SetRecord(ctx, catalog.Members, clubID, a2, TestMember("Yasuhiro"), Upsert)
	require.NoError(t, err, "failed to call SetRecord a2")
	require.Equal(t, ActionCreated, action)

	records, err := storage.ListChanges(ctx, catalog.Members, clubID, nil)
	require.NoError(t, err, "failed to call list changes")
	require.Len(t, records, 2)
	require.Equal(t, a1, records[0].ID)
	require.Equal(t, "Jigoro", records[0].Fields["first_name"])
	require.Equal(t, "white", records[0].Fields["belt_level"])
	require.Equal(t, float64(25), records[0].Fields["monthly_fee"])
	require.Equal(t, time.Date(2010, 5, 17, 0, 0, 0, 0, time.UTC), records[0].Fields["date_of_birth"])
	require.Equal(t, false, records[0].Fields["has_discount"])
	require.Nil(t, records[0].Fields["phone"])
	require.Equal(t, clubID, records[0].ClubID())
	require.Len(t, records[0].Fields, len(catalog.Members.Schema().Columns))

	// another club sees nothing
	anotherClubID := NewTestClub(t, storage)
	records, err = storage.ListChanges(ctx, catalog.Members, anotherClubID, nil)
	require.NoError(t, err)
	require.Empty(t, records)
}

func (s *StoreTest) TestUpdateRecords(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	clubID := NewTestClub(t, storage)
	a1 := uuid.NewString()

	created, _, err := storage.SetRecord(ctx, catalog.Members, clubID, a1, TestMember("Jigoro"), Upsert)
	require.NoError(t, err, "failed to call SetRecord a1")

	updated, action, err := storage.SetRecord(ctx, catalog.Members, clubID, a1, catalog.Fields{
		"belt_level": "black",
		"phone":      "+221 77 000 00 00",
	}, Upsert)
	require.NoError(t, err, "failed to update a1")
	require.Equal(t, ActionUpdated, action)
	require.True(t, updated.UpdatedAt().After(created.UpdatedAt()))
	require.Equal(t, int64(2), updated.Fields.Int(catalog.ColSyncVersion))

	record, err := storage.GetRecord(ctx, catalog.Members, clubID, a1)
	require.NoError(t, err)
	require.Equal(t, "black", record.Fields["belt_level"])
	require.Equal(t, "+221 77 000 00 00", record.Fields["phone"])
	require.Equal(t, "Jigoro", record.Fields["first_name"])
	require.Equal(t, created.Fields.Time(catalog.ColCreatedAt), record.Fields.Time(catalog.ColCreatedAt))
	require.Equal(t, updated.UpdatedAt(), record.UpdatedAt())
}

func (s *StoreTest) TestListChangesSince(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	clubID := NewTestClub(t, storage)
	a1, a2 := uuid.NewString(), uuid.NewString()

	first, _, err := storage.SetRecord(ctx, catalog.Members, clubID, a1, TestMember("Jigoro"), Upsert)
	require.NoError(t, err)
	_, _, err = storage.SetRecord(ctx, catalog.Members, clubID, a2, TestMember("Yasuhiro"), Upsert)
	require.NoError(t, err)

	since := first.UpdatedAt()
	records, err := storage.ListChanges(ctx, catalog.Members, clubID, &since)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, a2, records[0].ID)

	future := time.Now().Add(time.Hour)
	records, err = storage.ListChanges(ctx, catalog.Members, clubID, &future)
	require.NoError(t, err)
	require.Empty(t, records)
}

// TestWriteDuringPull interleaves a record write with a pull: the
// watermark handed out while the write is still open must select the row
// once it commits.
func (s *StoreTest) TestWriteDuringPull(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	clubID := NewTestClub(t, storage)
	id := uuid.NewString()

	_, release := BeginWrite()
	mark := SyncPoint()
	records, err := storage.ListChanges(ctx, catalog.Members, clubID, &mark)
	require.NoError(t, err)
	require.Empty(t, records)

	written, _, err := storage.SetRecord(ctx, catalog.Members, clubID, id, TestMember("Jigoro"), Upsert)
	require.NoError(t, err)
	release()
	require.True(t, written.UpdatedAt().After(mark))

	records, err = storage.ListChanges(ctx, catalog.Members, clubID, &mark)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, id, records[0].ID)

	next := SyncPoint()
	records, err = storage.ListChanges(ctx, catalog.Members, clubID, &next)
	require.NoError(t, err)
	require.Empty(t, records)
}

func (s *StoreTest) TestWriteModes(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	clubID := NewTestClub(t, storage)
	a1 := uuid.NewString()

	_, _, err := storage.SetRecord(ctx, catalog.Members, clubID, a1, catalog.Fields{"belt_level": "black"}, UpdateOnly)
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = storage.SetRecord(ctx, catalog.Members, clubID, a1, TestMember("Jigoro"), CreateOnly)
	require.NoError(t, err)

	_, _, err = storage.SetRecord(ctx, catalog.Members, clubID, a1, TestMember("Jigoro"), CreateOnly)
	require.ErrorIs(t, err, ErrExists)

	_, action, err := storage.SetRecord(ctx, catalog.Members, clubID, a1, catalog.Fields{"belt_level": "black"}, UpdateOnly)
	require.NoError(t, err)
	require.Equal(t, ActionUpdated, action)

	require.NoError(t, storage.DeleteRecord(ctx, catalog.Members, clubID, a1))
	require.ErrorIs(t, storage.DeleteRecord(ctx, catalog.Members, clubID, a1), ErrNotFound)
	_, err = storage.GetRecord(ctx, catalog.Members, clubID, a1)
	require.ErrorIs(t, err, ErrNotFound)
}

func (s *StoreTest) TestInvalidRecord(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	clubID := NewTestClub(t, storage)
	a1 := uuid.NewString()

	incomplete := TestMember("Jigoro")
	delete(incomplete, "monthly_fee")
	_, _, err := storage.SetRecord(ctx, catalog.Members, clubID, a1, incomplete, Upsert)
	var fe *catalog.FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "monthly_fee", fe.Field)

	records, err := storage.ListChanges(ctx, catalog.Members, clubID, nil)
	require.NoError(t, err)
	require.Empty(t, records)
}

func (s *StoreTest) TestForeignRecord(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	owner := NewTestClub(t, storage)
	intruder := NewTestClub(t, storage)
	sharedID := uuid.NewString()

	_, _, err := storage.SetRecord(ctx, catalog.Members, owner, sharedID, TestMember("Jigoro"), Upsert)
	require.NoError(t, err)

	_, _, err = storage.SetRecord(ctx, catalog.Members, intruder, sharedID, TestMember("Mallory"), Upsert)
	require.ErrorIs(t, err, ErrForeignRecord)

	record, err := storage.GetRecord(ctx, catalog.Members, owner, sharedID)
	require.NoError(t, err)
	require.Equal(t, "Jigoro", record.Fields["first_name"])
	require.Equal(t, owner, record.ClubID())
}

func (s *StoreTest) TestUsers(t *testing.T, storage SyncStorage) {
	ctx := context.Background()
	clubID := NewTestClub(t, storage)

	club, err := storage.GetClub(ctx, clubID)
	require.NoError(t, err)
	require.True(t, club.IsActive)

	email := uuid.NewString() + "@example.com"
	coach := &User{ClubID: clubID, Email: email, HashedPassword: "h", FirstName: "Teddy", LastName: "Riner", Role: RoleCoach, IsActive: true}
	require.NoError(t, storage.CreateUser(ctx, coach))
	require.NotEmpty(t, coach.ID)

	dup := &User{ClubID: clubID, Email: email, HashedPassword: "h", FirstName: "T", LastName: "R", Role: RoleCoach}
	require.ErrorIs(t, storage.CreateUser(ctx, dup), ErrEmailTaken)

	byEmail, err := storage.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, coach.ID, byEmail.ID)
	require.Equal(t, RoleCoach, byEmail.Role)

	users, err := storage.ListUsers(ctx, clubID)
	require.NoError(t, err)
	require.Len(t, users, 2)

	coach.Role = RoleSecretary
	coach.IsActive = false
	require.NoError(t, storage.UpdateUser(ctx, coach))
	got, err := storage.GetUser(ctx, coach.ID)
	require.NoError(t, err)
	require.Equal(t, RoleSecretary, got.Role)
	require.False(t, got.IsActive)

	require.NoError(t, storage.DeleteUser(ctx, clubID, coach.ID))
	_, err = storage.GetUser(ctx, coach.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

// Run executes the whole suite against storage.
func (s *StoreTest) Run(t *testing.T, storage SyncStorage) {
	t.Run("AddRecords", func(t *testing.T) { s.TestAddRecords(t, storage) })
	t.Run("UpdateRecords", func(t *testing.T) { s.TestUpdateRecords(t, storage) })
	t.Run("ListChangesSince", func(t *testing.T) { s.TestListChangesSince(t, storage) })
	t.Run("WriteDuringPull", func(t *testing.T) { s.TestWriteDuringPull(t, storage) })
	t.Run("WriteModes", func(t *testing.T) { s.TestWriteModes(t, storage) })
	t.Run("InvalidRecord", func(t *testing.T) { s.TestInvalidRecord(t, storage) })
	t.Run("ForeignRecord", func(t *testing.T) { s.TestForeignRecord(t, storage) })
	t.Run("Users", func(t *testing.T) { s.TestUsers(t, storage) })
}
