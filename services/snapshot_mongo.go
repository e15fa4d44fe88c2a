package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"site-assistant/models"
)

// MongoSnapshotStore keeps the crawled document snapshot in a MongoDB
// collection instead of a flat file, for deployments where the crawler and
// the builder run on different hosts. Same contract as the file snapshot:
// the crawler replaces the collection wholesale, the builder reads it in one
// pass ordered by URL.
type MongoSnapshotStore struct {
	collection *mongo.Collection
}

func NewMongoSnapshotStore(client *mongo.Client, dbName string) *MongoSnapshotStore {
	return &MongoSnapshotStore{collection: client.Database(dbName).Collection("documents")}
}

// Replace swaps the stored snapshot for docs. Upserts keyed by URL followed
// by a sweep of rows older than the swap keeps readers working mid-replace.
func (s *MongoSnapshotStore) Replace(ctx context.Context, docs []models.Document) error {
	swapStart := time.Now().UTC()

	batch := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"url": doc.URL}).
			SetUpdate(bson.M{"$set": bson.M{
				"url":        doc.URL,
				"title":      doc.Title,
				"text":       doc.Text,
				"fetched_at": doc.FetchedAt,
				"stored_at":  swapStart,
			}}).
			SetUpsert(true))
	}
	if len(batch) > 0 {
		if _, err := s.collection.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("write snapshot documents: %w", err)
		}
	}

	// Pages that disappeared from the site since the previous crawl
	if _, err := s.collection.DeleteMany(ctx, bson.M{"stored_at": bson.M{"$lt": swapStart}}); err != nil {
		return fmt.Errorf("prune stale snapshot documents: %w", err)
	}
	return nil
}

// Load returns every document of the current snapshot ordered by URL.
func (s *MongoSnapshotStore) Load(ctx context.Context) ([]models.Document, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "url", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query snapshot documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode snapshot documents: %w", err)
	}
	return docs, nil
}
