package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/store"
	"github.com/novaclub/club-sync/store/sqlite"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) store.SyncStorage {
	storage, err := sqlite.NewSQLiteSyncStorage("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err, "failed to create storage")
	t.Cleanup(func() { storage.Close() })
	return storage
}

func memberData(firstName string) map[string]any {
	return map[string]any{
		"first_name":        firstName,
		"last_name":         "Kano",
		"date_of_birth":     "2010-05-17",
		"gender":            "male",
		"category":          "minime",
		"monthly_fee":       25,
		"registration_date": "2024-09-01",
	}
}

func paymentData() map[string]any {
	return map[string]any{
		"member_id":    "m1",
		"amount":       50,
		"payment_type": "monthly_fee",
		"payment_date": "2024-01-01",
	}
}

func strPtr(s string) *string { return &s }

func TestPullAllMembers(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	for _, name := range []string{"Jigoro", "Yasuhiro", "Ryoko"} {
		_, err := s.Push(ctx, clubID, map[string][]PushRecord{
			"members": {{ID: uuid.NewString(), Data: memberData(name)}},
		})
		require.NoError(t, err)
	}

	res, err := s.Pull(ctx, clubID, map[string]*string{"members": nil})
	require.NoError(t, err)
	require.Len(t, res.Changes["members"], 3)
	for _, c := range res.Changes["members"] {
		require.Len(t, c.Data, len(catalog.Members.Schema().Columns))
		require.Equal(t, clubID, c.Data["club_id"])
		require.Equal(t, c.ID, c.Data["id"])
		require.Equal(t, "2010-05-17", c.Data["date_of_birth"])
		require.Equal(t, c.UpdatedAt, c.Data["updated_at"])
	}

	// every registered entity is present, in the same response
	require.Len(t, res.Changes, len(catalog.Kinds()))
	for _, kind := range catalog.Kinds() {
		require.Contains(t, res.Changes, kind.Name())
	}
	_, ok := catalog.ParseTimestamp(res.SyncTimestamp)
	require.True(t, ok)
}

func TestPullFutureWatermark(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	_, err := s.Push(ctx, clubID, map[string][]PushRecord{
		"members": {{ID: uuid.NewString(), Data: memberData("Jigoro")}},
	})
	require.NoError(t, err)

	future := catalog.FormatTimestamp(time.Now().Add(24 * time.Hour))
	res, err := s.Pull(ctx, clubID, map[string]*string{"members": &future})
	require.NoError(t, err)
	require.NotNil(t, res.Changes["members"])
	require.Empty(t, res.Changes["members"])
}

func TestPullWatermarkFilter(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	first, second := uuid.NewString(), uuid.NewString()
	_, err := s.Push(ctx, clubID, map[string][]PushRecord{"members": {{ID: first, Data: memberData("Jigoro")}}})
	require.NoError(t, err)
	res, err := s.Pull(ctx, clubID, nil)
	require.NoError(t, err)
	require.Len(t, res.Changes["members"], 1)
	mark := res.SyncTimestamp

	_, err = s.Push(ctx, clubID, map[string][]PushRecord{"members": {{ID: second, Data: memberData("Yasuhiro")}}})
	require.NoError(t, err)

	res, err = s.Pull(ctx, clubID, map[string]*string{"members": &mark})
	require.NoError(t, err)
	require.Len(t, res.Changes["members"], 1)
	require.Equal(t, second, res.Changes["members"][0].ID)

	// an updated record shows up again after the watermark
	_, err = s.Push(ctx, clubID, map[string][]PushRecord{"members": {{ID: first, Data: map[string]any{"belt_level": "yellow"}}}})
	require.NoError(t, err)
	res, err = s.Pull(ctx, clubID, map[string]*string{"members": &mark})
	require.NoError(t, err)
	require.Len(t, res.Changes["members"], 2)
	require.Equal(t, first, res.Changes["members"][1].ID)
	require.Equal(t, "yellow", res.Changes["members"][1].Data["belt_level"])
}

func TestPullBadWatermark(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	_, err := s.Push(ctx, clubID, map[string][]PushRecord{
		"members": {{ID: uuid.NewString(), Data: memberData("Jigoro")}},
	})
	require.NoError(t, err)

	res, err := s.Pull(ctx, clubID, map[string]*string{
		"members":  strPtr("yesterday-ish"),
		"payments": strPtr(""),
		"unknown":  strPtr("2024-01-01T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, res.Changes["members"], 1)
	require.Empty(t, res.Changes["payments"])
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubA := store.NewTestClub(t, storage)
	clubB := store.NewTestClub(t, storage)

	data := memberData("Jigoro")
	data["club_id"] = clubB
	id := uuid.NewString()
	res, err := s.Push(ctx, clubA, map[string][]PushRecord{"members": {{ID: id, Data: data}}})
	require.NoError(t, err)
	require.Len(t, res.Results.Success, 1)

	record, err := storage.GetRecord(ctx, catalog.Members, clubA, id)
	require.NoError(t, err)
	require.Equal(t, clubA, record.ClubID())

	pulled, err := s.Pull(ctx, clubB, nil)
	require.NoError(t, err)
	for _, changes := range pulled.Changes {
		require.Empty(t, changes)
	}

	// B cannot take over A's record by reusing its id
	res, err = s.Push(ctx, clubB, map[string][]PushRecord{"members": {{ID: id, Data: memberData("Mallory")}}})
	require.NoError(t, err)
	require.Empty(t, res.Results.Success)
	require.Len(t, res.Results.Errors, 1)
	require.Equal(t, id, res.Results.Errors[0].ID)

	record, err = storage.GetRecord(ctx, catalog.Members, clubA, id)
	require.NoError(t, err)
	require.Equal(t, "Jigoro", record.Fields["first_name"])
	require.Equal(t, clubA, record.ClubID())
}

func TestPushCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	batch := map[string][]PushRecord{"payments": {{ID: "new-id", Data: paymentData()}}}
	res, err := s.Push(ctx, clubID, batch)
	require.NoError(t, err)
	require.Equal(t, []Outcome{{Entity: "payments", ID: "new-id", Action: "created"}}, res.Results.Success)
	require.Empty(t, res.Results.Errors)

	res, err = s.Push(ctx, clubID, batch)
	require.NoError(t, err)
	require.Equal(t, []Outcome{{Entity: "payments", ID: "new-id", Action: "updated"}}, res.Results.Success)
	require.Empty(t, res.Results.Errors)

	record, err := storage.GetRecord(ctx, catalog.Payments, clubID, "new-id")
	require.NoError(t, err)
	require.Equal(t, float64(50), record.Fields["amount"])
	require.Equal(t, int64(2), record.Fields.Int(catalog.ColSyncVersion))
}

func TestPushUpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)
	id := uuid.NewString()

	_, err := s.Push(ctx, clubID, map[string][]PushRecord{"members": {{ID: id, Data: memberData("Jigoro")}}})
	require.NoError(t, err)
	created, err := storage.GetRecord(ctx, catalog.Members, clubID, id)
	require.NoError(t, err)

	second := memberData("Kyuzo")
	second["id"] = "something-else"
	second["created_at"] = "2001-01-01T00:00:00Z"
	second["monthly_fee"] = 30.5
	res, err := s.Push(ctx, clubID, map[string][]PushRecord{"members": {{ID: id, Data: second}}})
	require.NoError(t, err)
	require.Equal(t, "updated", res.Results.Success[0].Action)

	updated, err := storage.GetRecord(ctx, catalog.Members, clubID, id)
	require.NoError(t, err)
	require.Equal(t, id, updated.ID)
	require.Equal(t, "Kyuzo", updated.Fields["first_name"])
	require.Equal(t, 30.5, updated.Fields["monthly_fee"])
	require.Equal(t, created.Fields.Time(catalog.ColCreatedAt), updated.Fields.Time(catalog.ColCreatedAt))
	require.True(t, updated.UpdatedAt().After(created.UpdatedAt()))
}

func TestPushBatchIsolation(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	bad := memberData("Broken")
	delete(bad, "monthly_fee")
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()}
	res, err := s.Push(ctx, clubID, map[string][]PushRecord{
		"members": {
			{ID: ids[0], Data: memberData("Jigoro")},
			{ID: ids[1], Data: bad},
			{ID: ids[2], Data: memberData("Yasuhiro")},
			{ID: ids[3], Data: map[string]any{"first_name": "Typo", "gender": "robot"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Results.Success, 2)
	require.Len(t, res.Results.Errors, 2)
	require.Equal(t, Outcome{Entity: "members", ID: ids[1], Error: `field "monthly_fee": required`}, res.Results.Errors[0])
	require.Equal(t, ids[3], res.Results.Errors[1].ID)
	require.Contains(t, res.Results.Errors[1].Error, "gender")

	records, err := storage.ListChanges(ctx, catalog.Members, clubID, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, ids[0], records[0].ID)
	require.Equal(t, ids[2], records[1].ID)
}

func TestPushOutcomeAccounting(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	batch := map[string][]PushRecord{
		"members":        {{ID: uuid.NewString(), Data: memberData("Jigoro")}, {ID: "", Data: memberData("NoID")}},
		"payments":       {{ID: uuid.NewString(), Data: paymentData()}, {ID: uuid.NewString(), Data: map[string]any{}}},
		"licenses":       {},
		"unknown_entity": {{ID: "x", Data: map[string]any{}}},
	}
	res, err := s.Push(ctx, clubID, batch)
	require.NoError(t, err)
	require.Equal(t, 4, len(res.Results.Success)+len(res.Results.Errors))
	require.Len(t, res.Results.Success, 2)
	// groups are reported in registration order
	require.Equal(t, "members", res.Results.Success[0].Entity)
	require.Equal(t, "payments", res.Results.Success[1].Entity)
	require.Equal(t, ErrMissingID.Error(), res.Results.Errors[0].Error)
}

func TestPushUnknownEntity(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	res, err := s.Push(ctx, clubID, map[string][]PushRecord{"unknown_entity": {{ID: "x", Data: map[string]any{}}}})
	require.NoError(t, err)
	require.NotNil(t, res.Results.Success)
	require.NotNil(t, res.Results.Errors)
	require.Empty(t, res.Results.Success)
	require.Empty(t, res.Results.Errors)
}

func TestPushNotifiesApplied(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)

	var applied []Applied
	s.OnApplied(func(club string, a Applied) {
		require.Equal(t, clubID, club)
		applied = append(applied, a)
	})
	bad := paymentData()
	bad["amount"] = "fifty"
	_, err := s.Push(ctx, clubID, map[string][]PushRecord{
		"payments": {{ID: "p1", Data: paymentData()}, {ID: "p2", Data: bad}},
	})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.Equal(t, catalog.Payments, applied[0].Kind)
	require.Equal(t, "p1", applied[0].ID)
	require.Equal(t, store.ActionCreated, applied[0].Action)
}

func TestPushStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)
	s := New(storage)
	clubID := store.NewTestClub(t, storage)
	require.NoError(t, storage.Close())

	_, err := s.Push(ctx, clubID, map[string][]PushRecord{"payments": {{ID: "p1", Data: paymentData()}}})
	require.ErrorIs(t, err, store.ErrUnavailable)
}

func TestMissingTenant(t *testing.T) {
	s := New(newStorage(t))
	_, err := s.Pull(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrNoTenant)
	_, err = s.Push(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrNoTenant)
}
