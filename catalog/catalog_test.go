package catalog

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistrationOrder(t *testing.T) {
	var names []string
	for _, k := range Kinds() {
		names = append(names, k.Name())
	}
	require.Equal(t, []string{
		"members", "payments", "licenses", "equipment",
		"equipment_purchases", "attendances", "transactions", "messages",
	}, names)
}

func TestResolve(t *testing.T) {
	k, ok := Resolve("payments")
	require.True(t, ok)
	require.Equal(t, Payments, k)

	_, ok = Resolve("unknown_entity")
	require.False(t, ok)
	_, ok = Resolve("users")
	require.False(t, ok, "users are not synchronized")
}

func TestBaseColumns(t *testing.T) {
	for _, k := range Kinds() {
		s := k.Schema()
		for _, name := range []string{ColID, ColClubID, ColCreatedAt, ColUpdatedAt, ColDeviceID, ColSyncVersion} {
			_, ok := s.Column(name)
			require.True(t, ok, "%s is missing %s", k, name)
		}
		require.Equal(t, ColID, s.Columns[0].Name)
	}
}

func TestCoerce(t *testing.T) {
	s := Payments.Schema()
	fields, err := s.Coerce(map[string]any{
		"member_id":      "m1",
		"amount":         json.Number("50"),
		"payment_type":   "MONTHLY_FEE",
		"payment_date":   "2024-01-01",
		"club_id":        "other-club",
		"updated_at":     "2030-01-01T00:00:00Z",
		"local_only_key": true,
	})
	require.NoError(t, err)
	require.Equal(t, Fields{
		"member_id":    "m1",
		"amount":       float64(50),
		"payment_type": "monthly_fee",
		"payment_date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"club_id":      "other-club",
	}, fields)
}

func TestCoerceErrors(t *testing.T) {
	s := Payments.Schema()
	cases := []struct {
		name  string
		data  map[string]any
		field string
	}{
		{"bad enum", map[string]any{"payment_type": "gift"}, "payment_type"},
		{"bad date", map[string]any{"payment_date": "yesterday"}, "payment_date"},
		{"bad amount", map[string]any{"amount": "fifty"}, "amount"},
		{"null required", map[string]any{"member_id": nil}, "member_id"},
		{"wrong type", map[string]any{"notes": 12.0}, "notes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Coerce(tc.data)
			require.Error(t, err)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tc.field, fe.Field)
		})
	}

	for _, quantity := range []any{1.5, 1e300, -1e19, math.Inf(1), math.NaN()} {
		_, err := Equipment.Schema().Coerce(map[string]any{"stock_quantity": quantity})
		require.Error(t, err, "stock_quantity %v", quantity)
	}
	fields, err := Equipment.Schema().Coerce(map[string]any{"stock_quantity": -1e18})
	require.NoError(t, err)
	require.Equal(t, int64(-1e18), fields["stock_quantity"])
}

func TestValidateRequired(t *testing.T) {
	s := Messages.Schema()
	row := s.Defaults()
	row[ColID] = "msg-1"
	row[ColClubID] = "club-1"
	row[ColCreatedAt] = time.Now()
	row[ColUpdatedAt] = time.Now()
	row["title"] = "Training cancelled"

	err := s.Validate(row)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "content", fe.Field)

	row["content"] = "No training on Saturday."
	require.NoError(t, s.Validate(row))
}

func TestEncode(t *testing.T) {
	s := Licenses.Schema()
	updated := time.Date(2024, 3, 2, 10, 30, 0, 123000, time.UTC)
	out := s.Encode(Fields{
		ColID:         "l1",
		ColUpdatedAt:  updated,
		"issue_date":  time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		"amount":      float64(35),
		"season":      "2024-2025",
		"expiry_date": nil,
	})
	require.Len(t, out, len(s.Columns))
	require.Equal(t, "2024-09-01", out["issue_date"])
	require.Equal(t, "2024-03-02T10:30:00.000123Z", out[ColUpdatedAt])
	require.Nil(t, out["license_number"])
	require.Equal(t, float64(35), out["amount"])
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]bool{
		"2024-01-01T10:00:00Z":             true,
		"2024-01-01T10:00:00.123456+02:00": true,
		"2024-01-01T10:00:00.123456":       true,
		"2024-01-01 10:00:00":              true,
		"2024-01-01":                       true,
		"":                                 false,
		"not-a-date":                       false,
		"2024-13-01T00:00:00":              false,
	}
	for in, ok := range cases {
		_, parsed := ParseTimestamp(in)
		require.Equal(t, ok, parsed, in)
	}

	ts, ok := ParseTimestamp("2024-01-01T12:00:00+02:00")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), ts)
}
