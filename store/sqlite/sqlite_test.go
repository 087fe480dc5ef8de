package sqlite

import (
	"context"
	"testing"

	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/store"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	storage, err := NewSQLiteSyncStorage("file:teststorage?mode=memory&cache=shared")
	require.NoError(t, err, "failed to connect")
	defer storage.Close()

	(&store.StoreTest{}).Run(t, storage)
}

func TestMigrationsMatchCatalog(t *testing.T) {
	storage, err := NewSQLiteSyncStorage("file:testmigrations?mode=memory&cache=shared")
	require.NoError(t, err, "failed to connect")
	defer storage.Close()

	for _, kind := range catalog.Kinds() {
		rows, err := storage.db.QueryContext(context.Background(), "SELECT name FROM pragma_table_info(?)", kind.Name())
		require.NoError(t, err)
		var columns []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			columns = append(columns, name)
		}
		require.NoError(t, rows.Close())
		require.ElementsMatch(t, kind.Schema().ColumnNames(), columns, "table %s", kind)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/club.db"
	storage, err := NewSQLiteSyncStorage(file)
	require.NoError(t, err)
	clubID := store.NewTestClub(t, storage)
	_, _, err = storage.SetRecord(context.Background(), catalog.Members, clubID, "m1", store.TestMember("Jigoro"), store.Upsert)
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	storage, err = NewSQLiteSyncStorage(file)
	require.NoError(t, err, "migrations must be idempotent")
	defer storage.Close()
	record, err := storage.GetRecord(context.Background(), catalog.Members, clubID, "m1")
	require.NoError(t, err)
	require.Equal(t, "Jigoro", record.Fields["first_name"])
}
