package journal

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wuwenbin0122/assistant-relay/internal/models"
	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
	Runs     *mongo.Collection
}

func NewMongo(ctx context.Context, cfg utils.JournalConfig) (*Mongo, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("journal: mongo uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.MongoURI)
	if cfg.MongoConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.MongoConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.MongoConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("journal: connect mongo: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	return &Mongo{
		Client:   client,
		Database: db,
		Runs:     db.Collection("assistant_runs"),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

func (m *Mongo) EnsureCollections(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("journal: mongo database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.Runs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "started_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("journal: ensure run index: %w", err)
	}

	return nil
}

func (m *Mongo) Record(ctx context.Context, record models.RunRecord) error {
	if m == nil || m.Runs == nil {
		return fmt.Errorf("journal: mongo collection not initialised")
	}

	if _, err := m.Runs.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("journal: insert run record: %w", err)
	}
	return nil
}
