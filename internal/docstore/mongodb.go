package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoStore keeps each collection in a MongoDB collection of the same name,
// keyed by ObjectID.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	delete(doc, "_id")

	result, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("mongodb insert: %w", err)
	}
	oid, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("mongodb insert: unexpected id type %T", result.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		// ids not minted by this store cannot exist in it
		return nil, ErrNotFound
	}

	raw, err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return decodeMongoDocument(raw)
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []Document{}
	for cursor.Next(ctx) {
		doc, err := decodeMongoDocument(cursor.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb cursor: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	set := bson.D{}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		set = append(set, bson.E{Key: k, Value: v})
	}

	result, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("mongodb update: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}}); err != nil {
		return fmt.Errorf("mongodb delete: %w", err)
	}
	return nil
}

// decodeMongoDocument converts a raw BSON document into plain JSON values via
// relaxed extended JSON, so numbers and nested documents match what the
// other backends return.
func decodeMongoDocument(raw bson.Raw) (*Document, error) {
	oid, ok := raw.Lookup("_id").ObjectIDOK()
	if !ok {
		return nil, fmt.Errorf("mongodb document without ObjectID _id")
	}

	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(ext, &fields); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	delete(fields, "_id")

	return &Document{ID: oid.Hex(), Fields: fields}, nil
}
