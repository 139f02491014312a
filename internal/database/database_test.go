package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/avatair-api/internal/models"
)

func TestOpenSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	db, err := OpenSQL("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, true))

	require.True(t, db.Migrator().HasTable(&models.Survey{}))
	require.True(t, db.Migrator().HasTable(&models.ResponsePrompt{}))
	require.True(t, db.Migrator().HasTable(&models.ResponseRating{}))
}

func TestMigrateWithoutArtifacts(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	db, err := OpenSQL("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, false))

	require.True(t, db.Migrator().HasTable(&models.Survey{}))
	require.False(t, db.Migrator().HasTable(&models.ResponseImage{}))
}

func TestOpenSQLRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQL("oracle", "dsn")
	require.Error(t, err)

	_, err = OpenSQL("sqlite", "")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	server.CheckGet(t, "k", "v")
}

func TestConnectValidatesURLs(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "")
	require.Error(t, err)

	_, _, err = ConnectMongo(context.Background(), "", "avatair")
	require.Error(t, err)

	_, err = ConnectNATS("", "avatair")
	require.Error(t, err)
}
