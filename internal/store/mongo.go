package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

const (
	connectTimeout   = 10 * time.Second
	operationTimeout = 5 * time.Second
)

// MongoConfig holds the connection and retention settings for MongoStore.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	MaxHistory int
	MaxAge     time.Duration
}

// MongoStore keeps one document per fetch event and always reads the most
// recent one per location.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	maxHistory int
	maxAge     time.Duration
	now        func() time.Time
}

// NewMongoDBClient connects to MongoDB and verifies the connection.
func NewMongoDBClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctxWithTimeout, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.Ping(ctxWithTimeout, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return client, nil
}

// NewMongoStore connects and ensures the location/stored_at index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := NewMongoDBClient(ctx, cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	if err := createIndexes(ctx, collection); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: collection,
		maxHistory: cfg.MaxHistory,
		maxAge:     cfg.MaxAge,
		now:        time.Now,
	}, nil
}

func createIndexes(ctx context.Context, collection *mongo.Collection) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctxWithTimeout, mongo.IndexModel{
		Keys: bson.D{{Key: "location_id", Value: 1}, {Key: "stored_at", Value: -1}},
	})
	return err
}

// Close closes the mongo connection.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

// Append inserts a new entry and prunes entries beyond the retention limits.
func (s *MongoStore) Append(ctx context.Context, entry weather.CacheEntry) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctxWithTimeout, entry); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	return s.prune(ctxWithTimeout, entry.LocationID)
}

// Latest returns the most recent entry for a location.
func (s *MongoStore) Latest(ctx context.Context, locationID string) (weather.CacheEntry, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "stored_at", Value: -1}})

	raw, err := s.collection.FindOne(ctxWithTimeout, bson.M{"location_id": locationID}, opts).DecodeBytes()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return weather.CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return weather.CacheEntry{}, err
	}
	return decodeEntry(raw)
}

// Range returns the entries for a location stored between from and to, oldest first.
func (s *MongoStore) Range(ctx context.Context, locationID string, from, to time.Time) ([]weather.CacheEntry, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	filter := bson.M{
		"location_id": locationID,
		"stored_at":   bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "stored_at", Value: 1}})

	cur, err := s.collection.Find(ctxWithTimeout, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctxWithTimeout)

	var entries []weather.CacheEntry
	for cur.Next(ctxWithTimeout) {
		e, err := decodeEntry(cur.Current)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

// prune removes entries older than maxAge and beyond maxHistory, always
// keeping the newest entry.
func (s *MongoStore) prune(ctx context.Context, locationID string) error {
	var cutoff time.Time

	if s.maxHistory > 0 {
		opts := options.FindOne().
			SetSort(bson.D{{Key: "stored_at", Value: -1}}).
			SetSkip(int64(s.maxHistory - 1)).
			SetProjection(bson.M{"stored_at": 1})

		var oldestKept struct {
			StoredAt time.Time `bson:"stored_at"`
		}
		err := s.collection.FindOne(ctx, bson.M{"location_id": locationID}, opts).Decode(&oldestKept)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return fmt.Errorf("find retention boundary: %w", err)
		default:
			cutoff = oldestKept.StoredAt
		}
	}

	if s.maxAge > 0 {
		if ageCutoff := s.now().Add(-s.maxAge); ageCutoff.After(cutoff) {
			latest, err := s.Latest(ctx, locationID)
			if err != nil {
				return err
			}
			if latest.StoredAt.Before(ageCutoff) {
				ageCutoff = latest.StoredAt
			}
			cutoff = ageCutoff
		}
	}

	if cutoff.IsZero() {
		return nil
	}

	_, err := s.collection.DeleteMany(ctx, bson.M{
		"location_id": locationID,
		"stored_at":   bson.M{"$lt": cutoff},
	})
	if err != nil {
		return fmt.Errorf("prune entries: %w", err)
	}
	return nil
}

// decodeEntry unmarshals a stored document. The driver decodes datetimes as
// UTC, so forecast times are moved back into the forecast's timezone.
func decodeEntry(raw bson.Raw) (weather.CacheEntry, error) {
	var entry weather.CacheEntry
	if err := bson.Unmarshal(raw, &entry); err != nil {
		return weather.CacheEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	localize(&entry.Snapshot)
	return entry, nil
}

func localize(snap *weather.Snapshot) {
	if snap.Forecast.Timezone == "" {
		return
	}
	tz, err := time.LoadLocation(snap.Forecast.Timezone)
	if err != nil {
		return
	}

	if snap.BestHour != nil {
		t := snap.BestHour.In(tz)
		snap.BestHour = &t
	}
	for i := range snap.Forecast.Hourly {
		snap.Forecast.Hourly[i].Time = snap.Forecast.Hourly[i].Time.In(tz)
	}
	for i := range snap.Marine.Hourly {
		snap.Marine.Hourly[i].Time = snap.Marine.Hourly[i].Time.In(tz)
	}
}
