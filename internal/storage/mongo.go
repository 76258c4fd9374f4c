// internal/storage/mongo.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ProfDian/water-qual-sub000/internal/data"
)

// Collection names. pending_entries is the merge buffer; the other two are
// append-mostly.
const (
	colPending  = "pending_entries"
	colReadings = "complete_readings"
	colAlerts   = "alerts"
)

// MongoStore implements Store on top of MongoDB. The merge-claim CAS maps to
// FindOneAndUpdate filtered on {_id, merged: expected}, which MongoDB applies
// atomically per document.
type MongoStore struct {
	db  *mongo.Database
	seq int64
}

// NewMongoStore connects, ensures collections and indexes, and returns the
// store. The caller owns the client lifecycle via Close.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &MongoStore{
		db:  client.Database(dbName),
		seq: time.Now().UnixNano(),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"db": dbName}).Info("mongo store ready")
	return s, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	// The merge query always filters (facilityId, merged, receivedAt); the
	// janitor filters (merged, expiresAt).
	pendingIdx := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "facilityId", Value: 1},
				{Key: "merged", Value: 1},
				{Key: "receivedAt", Value: -1},
			},
			Options: options.Index().SetName("facility_merged_received"),
		},
		{
			Keys: bson.D{
				{Key: "merged", Value: 1},
				{Key: "expiresAt", Value: 1},
			},
			Options: options.Index().SetName("merged_expires"),
		},
	}
	if _, err := s.db.Collection(colPending).Indexes().CreateMany(ctx, pendingIdx); err != nil {
		return fmt.Errorf("create pending indexes: %w", err)
	}

	readingIdx := mongo.IndexModel{
		Keys: bson.D{
			{Key: "facilityId", Value: 1},
			{Key: "observedAt", Value: -1},
		},
		Options: options.Index().SetName("facility_observed"),
	}
	if _, err := s.db.Collection(colReadings).Indexes().CreateOne(ctx, readingIdx); err != nil {
		return fmt.Errorf("create reading index: %w", err)
	}

	alertIdx := mongo.IndexModel{
		Keys: bson.D{
			{Key: "facilityId", Value: 1},
			{Key: "createdAt", Value: -1},
		},
		Options: options.Index().SetName("facility_created"),
	}
	if _, err := s.db.Collection(colAlerts).Indexes().CreateOne(ctx, alertIdx); err != nil {
		return fmt.Errorf("create alert index: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertPending(ctx context.Context, entry *data.PendingEntry) (string, error) {
	entry.ID = primitive.NewObjectID().Hex()
	entry.Seq = atomic.AddInt64(&s.seq, 1)
	if _, err := s.db.Collection(colPending).InsertOne(ctx, entry); err != nil {
		return "", fmt.Errorf("insert pending entry: %w", err)
	}
	return entry.ID, nil
}

func (s *MongoStore) PendingByFacilityAndWindow(ctx context.Context, facilityID string, since time.Time) ([]data.PendingEntry, error) {
	filter := bson.M{
		"facilityId": facilityID,
		"merged":     false,
		"receivedAt": bson.M{"$gt": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := s.db.Collection(colPending).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query pending window: %w", err)
	}
	defer cursor.Close(ctx)

	var out []data.PendingEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pending entries: %w", err)
	}
	return out, nil
}

func (s *MongoStore) ConditionalSetMerged(ctx context.Context, id string, expected, desired bool) error {
	filter := bson.M{"_id": id, "merged": expected}
	update := bson.M{"$set": bson.M{"merged": desired}}
	err := s.db.Collection(colPending).FindOneAndUpdate(ctx, filter, update).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Missing or already claimed: either way the claim loses.
			return ErrClaimConflict
		}
		return fmt.Errorf("conditional merge update: %w", err)
	}
	return nil
}

func (s *MongoStore) ExpiredPending(ctx context.Context, now time.Time) ([]data.PendingEntry, error) {
	filter := bson.M{"merged": false, "expiresAt": bson.M{"$lt": now}}
	cursor, err := s.db.Collection(colPending).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query expired entries: %w", err)
	}
	defer cursor.Close(ctx)

	var out []data.PendingEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode expired entries: %w", err)
	}
	return out, nil
}

func (s *MongoStore) BatchDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{"merged": false, "expiresAt": bson.M{"$lt": now}}
	res, err := s.db.Collection(colPending).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) InsertReading(ctx context.Context, reading *data.CompleteReading) (string, error) {
	if reading.ID == "" {
		reading.ID = primitive.NewObjectID().Hex()
	}
	if _, err := s.db.Collection(colReadings).InsertOne(ctx, reading); err != nil {
		return "", fmt.Errorf("insert complete reading: %w", err)
	}
	return reading.ID, nil
}

func (s *MongoStore) InsertAlert(ctx context.Context, alert *data.Alert) (string, error) {
	if alert.ID == "" {
		alert.ID = primitive.NewObjectID().Hex()
	}
	if _, err := s.db.Collection(colAlerts).InsertOne(ctx, alert); err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	return alert.ID, nil
}

func (s *MongoStore) RecentReadings(ctx context.Context, limit int64) ([]data.CompleteReading, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "observedAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.db.Collection(colReadings).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query recent readings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []data.CompleteReading
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	return out, nil
}

func (s *MongoStore) AlertsByFacility(ctx context.Context, facilityID string, limit int64) ([]data.Alert, error) {
	filter := bson.M{}
	if facilityID != "" {
		filter["facilityId"] = facilityID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.db.Collection(colAlerts).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var out []data.Alert
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}
	return out, nil
}

func (s *MongoStore) PendingStats(ctx context.Context, facilityID string) (data.BufferStats, error) {
	col := s.db.Collection(colPending)
	base := bson.M{}
	if facilityID != "" {
		base["facilityId"] = facilityID
	}

	stats := data.BufferStats{BySide: map[data.Side]int64{}}
	var err error
	if stats.Total, err = col.CountDocuments(ctx, base); err != nil {
		return stats, fmt.Errorf("count pending: %w", err)
	}

	mergedFilter := bson.M{"merged": true}
	for k, v := range base {
		mergedFilter[k] = v
	}
	if stats.Merged, err = col.CountDocuments(ctx, mergedFilter); err != nil {
		return stats, fmt.Errorf("count merged: %w", err)
	}
	stats.Unmerged = stats.Total - stats.Merged

	for _, side := range []data.Side{data.SideInlet, data.SideOutlet} {
		sideFilter := bson.M{"merged": false, "side": side}
		for k, v := range base {
			sideFilter[k] = v
		}
		n, err := col.CountDocuments(ctx, sideFilter)
		if err != nil {
			return stats, fmt.Errorf("count side %s: %w", side, err)
		}
		if n > 0 {
			stats.BySide[side] = n
		}
	}
	return stats, nil
}
