package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yyup/kadmin/config"
)

// MongoHandle pairs a client with the configured database so it can be
// released through io.Closer.
type MongoHandle struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoClient(ctx context.Context, cfg config.MongoConfig) (*MongoHandle, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo connection uri is empty")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database name is empty")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	timeout := timeoutOrDefault(cfg.ConnectTimeout)
	opts.SetServerSelectionTimeout(timeout)

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoHandle{Client: client, Database: client.Database(cfg.Database)}, nil
}

func (h *MongoHandle) Close() error {
	if h == nil || h.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.Client.Disconnect(ctx)
}
