package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"audiomark/internal/fingerprint"
)

// MongoIndex is an alternate Index backend retained from the teacher's
// dependency on go.mongodb.org/mongo-driver. It stores references and
// fingerprints in two collections, with (algorithm, hash_hex) and
// (file_path) indexes mirroring the SQLite schema's keys.
type MongoIndex struct {
	client        *mongo.Client
	refs          *mongo.Collection
	fps           *mongo.Collection
	nextRefID     int64 // local counter, refreshed from the collection at open time
	counterInited int32
}

type mongoRefDoc struct {
	ReferenceId int64  `bson:"reference_id"`
	FilePath    string `bson:"file_path"`
	Filename    string `bson:"filename"`
}

type mongoFPDoc struct {
	Algorithm   string `bson:"algorithm"`
	HashHex     string `bson:"hash_hex"`
	LocalTime   int    `bson:"local_time"`
	ReferenceId int64  `bson:"reference_id"`
}

// NewMongoIndex connects to uri and ensures the supporting indexes exist.
func NewMongoIndex(ctx context.Context, uri, database string) (*MongoIndex, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(database)
	refs := db.Collection("audio_refs")
	fps := db.Collection("fingerprints")

	if _, err := refs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "file_path", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("creating file_path index: %w", err)
	}
	if _, err := fps.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "algorithm", Value: 1}, {Key: "hash_hex", Value: 1}},
	}); err != nil {
		return nil, fmt.Errorf("creating algorithm/hash index: %w", err)
	}

	idx := &MongoIndex{client: client, refs: refs, fps: fps}
	if err := idx.primeCounter(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (m *MongoIndex) primeCounter(ctx context.Context) error {
	opts := options.FindOne().SetSort(bson.D{{Key: "reference_id", Value: -1}})
	var doc mongoRefDoc
	err := m.refs.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return fmt.Errorf("priming reference counter: %w", err)
	}
	atomic.StoreInt64(&m.nextRefID, doc.ReferenceId)
	return nil
}

func (m *MongoIndex) EnsureReference(ctx context.Context, filePath, filename string) (ReferenceId, error) {
	if filename == "" {
		filename = filepath.Base(filePath)
	}

	var existing mongoRefDoc
	err := m.refs.FindOne(ctx, bson.D{{Key: "file_path", Value: filePath}}).Decode(&existing)
	if err == nil {
		return ReferenceId(existing.ReferenceId), nil
	}
	if err != mongo.ErrNoDocuments {
		return 0, fmt.Errorf("checking existing reference: %w", err)
	}

	newID := atomic.AddInt64(&m.nextRefID, 1)
	_, err = m.refs.InsertOne(ctx, mongoRefDoc{ReferenceId: newID, FilePath: filePath, Filename: filename})
	if err != nil {
		// lost a race; fall back to whichever document won
		var raced mongoRefDoc
		if findErr := m.refs.FindOne(ctx, bson.D{{Key: "file_path", Value: filePath}}).Decode(&raced); findErr == nil {
			return ReferenceId(raced.ReferenceId), nil
		}
		return 0, fmt.Errorf("inserting reference: %w", err)
	}
	return ReferenceId(newID), nil
}

func (m *MongoIndex) IsRegistered(ctx context.Context, filePath string, algo fingerprint.Algorithm) (bool, error) {
	var existing mongoRefDoc
	if err := m.refs.FindOne(ctx, bson.D{{Key: "file_path", Value: filePath}}).Decode(&existing); err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("checking registration: %w", err)
	}

	count, err := m.fps.CountDocuments(ctx, bson.D{
		{Key: "reference_id", Value: existing.ReferenceId},
		{Key: "algorithm", Value: string(algo)},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking registration: %w", err)
	}
	return count > 0, nil
}

func (m *MongoIndex) WriteBatch(ctx context.Context, referenceId ReferenceId, algo fingerprint.Algorithm, tuples []fingerprint.Tuple) error {
	if len(tuples) == 0 {
		return nil
	}

	docs := make([]any, len(tuples))
	for i, tup := range tuples {
		docs[i] = mongoFPDoc{
			Algorithm:   string(algo),
			HashHex:     tup.Hash,
			LocalTime:   tup.LocalTime,
			ReferenceId: int64(referenceId),
		}
	}

	if _, err := m.fps.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("writing fingerprint batch: %w", err)
	}
	return nil
}

func (m *MongoIndex) Lookup(ctx context.Context, algo fingerprint.Algorithm, hashes []string) ([]Record, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	cur, err := m.fps.Find(ctx, bson.D{
		{Key: "algorithm", Value: string(algo)},
		{Key: "hash_hex", Value: bson.D{{Key: "$in", Value: hashes}}},
	})
	if err != nil {
		return nil, fmt.Errorf("bulk lookup: %w", err)
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var doc mongoFPDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding lookup row: %w", err)
		}
		out = append(out, Record{Hash: doc.HashHex, ReferenceId: ReferenceId(doc.ReferenceId), LocalTime: doc.LocalTime})
	}
	return out, cur.Err()
}

func (m *MongoIndex) GetReference(ctx context.Context, id ReferenceId) (Reference, error) {
	var doc mongoRefDoc
	err := m.refs.FindOne(ctx, bson.D{{Key: "reference_id", Value: int64(id)}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Reference{}, ErrNotFound
	}
	if err != nil {
		return Reference{}, fmt.Errorf("reading reference: %w", err)
	}
	return Reference{Id: id, FilePath: doc.FilePath, Filename: doc.Filename}, nil
}

func (m *MongoIndex) ClearAll(ctx context.Context) error {
	if _, err := m.fps.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clearing fingerprints: %w", err)
	}
	if _, err := m.refs.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clearing references: %w", err)
	}
	atomic.StoreInt64(&m.nextRefID, 0)
	return nil
}

func (m *MongoIndex) Close() error {
	return m.client.Disconnect(context.Background())
}
