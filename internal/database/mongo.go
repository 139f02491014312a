package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectMongo dials the document store used by the mongo artifact backend.
func ConnectMongo(ctx context.Context, url, database string) (*mongo.Client, *mongo.Database, error) {
	if url == "" {
		return nil, nil, fmt.Errorf("mongo url must not be empty")
	}
	if database == "" {
		return nil, nil, fmt.Errorf("mongo database must not be empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("unable to reach mongo: %w", err)
	}

	return client, client.Database(database), nil
}
