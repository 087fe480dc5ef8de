package postgres

import (
	"os"
	"testing"

	"github.com/novaclub/club-sync/store"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	url := os.Getenv("TEST_PG_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_PG_DATABASE_URL not set")
	}
	storage, err := NewPGSyncStorage(url)
	require.NoError(t, err, "failed to connect")
	defer storage.Close()

	(&store.StoreTest{}).Run(t, storage)
}
