package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/avatair-api/internal/models"
)

func openTestMongo(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("AVATAIR_TEST_MONGO_URL")
	if uri == "" {
		t.Skip("AVATAIR_TEST_MONGO_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database("avatair_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	require.NoError(t, EnsureResponseIndexes(ctx, db))
	return db
}

func TestMongoResponseRepositoryLifecycle(t *testing.T) {
	db := openTestMongo(t)
	store := NewMongoResponseRepository(db)
	ctx := context.Background()

	created, err := store.CreateResponse(ctx, "survey-1", models.Response{ResponseID: "responseidm1"})
	require.NoError(t, err)

	require.NoError(t, store.AppendPrompt(ctx, created.ID, "first"))
	require.NoError(t, store.AppendImage(ctx, created.ID, []byte{7}))
	require.NoError(t, store.AppendRating(ctx, created.ID, []byte(`{"score":1}`)))
	require.ErrorIs(t, store.AppendPrompt(ctx, "missing", "x"), ErrNotFound)

	loaded, err := store.Get(ctx, ResponseQuery{ID: created.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"first"}, loaded.PromptStrings)
	require.Equal(t, [][]byte{{7}}, loaded.GeneratedImageBatch)
	require.JSONEq(t, `{"score":1}`, string(loaded.Ratings[0]))

	_, err = store.CreateResponse(ctx, "survey-1", models.Response{ResponseID: "responseidm2"})
	require.NoError(t, err)

	matcher, err := NewMatcher("responseId", "m2$", 0)
	require.NoError(t, err)
	deleted, err := store.DeleteMany(ctx, matcher)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	deleted, err = store.DeleteBySurvey(ctx, "survey-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	listed, err := store.ListBySurvey(ctx, "survey-1")
	require.NoError(t, err)
	require.Empty(t, listed)
}
