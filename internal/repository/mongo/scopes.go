package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

type scopeDoc struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name"`
	Path      string `bson:"path"`
	Bookmark  []byte `bson:"bookmark"`
	Allowed   bool   `bson:"allowed"`
	UpdatedAt int64  `bson:"updatedAt"`
}

type ScopeRepository struct {
	collection *mongo.Collection
}

func NewScopeRepository(client *mongo.Client, dbName string) *ScopeRepository {
	return &ScopeRepository{collection: client.Database(dbName).Collection("storageScopes")}
}

func toScopeDoc(scope domain.StorageScope) scopeDoc {
	return scopeDoc{
		ID:        scope.ID.String(),
		Name:      scope.Name,
		Path:      scope.Path,
		Bookmark:  scope.Bookmark,
		Allowed:   scope.Allowed,
		UpdatedAt: time.Now().Unix(),
	}
}

func fromScopeDoc(doc scopeDoc) (domain.StorageScope, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return domain.StorageScope{}, fmt.Errorf("malformed scope id %q: %w", doc.ID, err)
	}
	return domain.StorageScope{
		ID:       id,
		Name:     doc.Name,
		Path:     doc.Path,
		Bookmark: doc.Bookmark,
		Allowed:  doc.Allowed,
	}, nil
}

func (r *ScopeRepository) ListScopes(ctx context.Context) ([]domain.StorageScope, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domain.StorageScope
	for cursor.Next(ctx) {
		var doc scopeDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		scope, err := fromScopeDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, scope)
	}
	return out, cursor.Err()
}

func (r *ScopeRepository) PutScope(ctx context.Context, scope domain.StorageScope) error {
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": scope.ID.String()},
		toScopeDoc(scope),
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *ScopeRepository) DeleteScope(ctx context.Context, id uuid.UUID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	return err
}
