package persistence

import (
	"context"
	"fmt"
	"time"

	"shabbat-mode/infrastructure/configuration"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// NewMongoDB connects to the history database. It returns an error when no host is configured.
func NewMongoDB(ctx context.Context) (*mongo.Database, error) {
	cfg := configuration.C.Database.Mongo
	if cfg.Host == "" {
		return nil, fmt.Errorf("mongo host not configured")
	}
	opts := options.Client().ApplyURI(mongoURI(cfg)).SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client.Database(cfg.Name), nil
}

func mongoURI(cfg configuration.Db) string {
	if cfg.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s", cfg.User, cfg.Password, cfg.Host, cfg.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s", cfg.Host, cfg.Port)
}
