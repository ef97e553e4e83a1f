package journal_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wuwenbin0122/assistant-relay/internal/journal"
	"github.com/wuwenbin0122/assistant-relay/internal/models"
	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

func TestMongoEnsureCollectionsAndRecord(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}

	cfg := utils.JournalConfig{
		MongoURI:            uri,
		MongoDatabase:       "assistant_relay_test_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		MongoConnectTimeout: 5 * time.Second,
	}

	store, err := journal.NewMongo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		ctx := context.Background()
		store.Database.Drop(ctx)
		store.Close(ctx)
	}()

	ctx := context.Background()
	if err := store.EnsureCollections(ctx); err != nil {
		t.Fatalf("ensure collections failed: %v", err)
	}

	record := models.RunRecord{
		ID:          uuid.NewString(),
		ThreadID:    "thread_" + uuid.NewString(),
		AssistantID: "asst_test",
		Outcome:     models.RunOutcomeError,
		Error:       "create run: boom",
		StartedAt:   time.Now().UTC(),
		FinishedAt:  time.Now().UTC(),
	}
	if err := store.Record(ctx, record); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	var result bson.M
	if err := store.Runs.FindOne(ctx, bson.M{"_id": record.ID}).Decode(&result); err != nil {
		t.Fatalf("failed to fetch run record: %v", err)
	}
	if result["outcome"] != string(models.RunOutcomeError) {
		t.Fatalf("expected outcome error, got %v", result["outcome"])
	}
	if _, ok := result["run_id"]; ok {
		t.Fatalf("expected empty run_id to be omitted")
	}
}
