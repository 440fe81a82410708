package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type metadataDoc struct {
	ID        string `bson:"_id"` // best info-hash hex
	DateAdded int64  `bson:"dateAdded"`
}

type MetadataRepository struct {
	collection *mongo.Collection
}

func NewMetadataRepository(client *mongo.Client, dbName string) *MetadataRepository {
	return &MetadataRepository{collection: client.Database(dbName).Collection("torrentMetadata")}
}

func (r *MetadataRepository) GetDateAdded(ctx context.Context, hash string) (time.Time, bool, error) {
	var doc metadataDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": hash}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.Unix(doc.DateAdded, 0).UTC(), true, nil
}

func (r *MetadataRepository) SetDateAdded(ctx context.Context, hash string, at time.Time) error {
	update := bson.M{"$set": bson.M{"dateAdded": at.Unix()}}
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": hash},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *MetadataRepository) DeleteMetadata(ctx context.Context, hash string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": hash})
	return err
}
