// Package mongo reads records, change logs and list items from MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syntrixbase/searchsync/internal/changelog"
	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/internal/storage/config"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// Backend is the MongoDB record store.
type Backend struct {
	client    *mongo.Client
	db        *mongo.Database
	records   *mongo.Collection
	changeLog *mongo.Collection
	listItems *mongo.Collection
}

var (
	_ recordstore.Loader  = (*Backend)(nil)
	_ recordstore.Scanner = (*Backend)(nil)
	_ changelog.Source    = (*Backend)(nil)
)

// NewBackend connects to MongoDB and verifies the connection.
func NewBackend(ctx context.Context, cfg config.Config) (*Backend, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		clientOpts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(cfg.Database)
	return &Backend{
		client:    client,
		db:        db,
		records:   db.Collection(cfg.RecordsCollection),
		changeLog: db.Collection(cfg.ChangeLogCollection),
		listItems: db.Collection(cfg.ListItemsCollection),
	}, nil
}

// DB returns the underlying database.
func (b *Backend) DB() *mongo.Database {
	return b.db
}

// ChangeLog returns the change log collection.
func (b *Backend) ChangeLog() *mongo.Collection {
	return b.changeLog
}

// EnsureIndexes creates the indexes lookups rely on.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	models := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{b.records, bson.D{{Key: "table", Value: 1}, {Key: "row_id", Value: 1}}},
		{b.changeLog, bson.D{{Key: "table", Value: 1}, {Key: "row_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{b.listItems, bson.D{{Key: "list_code", Value: 1}, {Key: "item_id", Value: 1}}},
	}
	for _, m := range models {
		if _, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: m.keys}); err != nil {
			return err
		}
	}
	return nil
}

// LoadRecord returns one record, or model.ErrNotFound.
func (b *Backend) LoadRecord(ctx context.Context, table string, id int64) (*recordstore.Record, error) {
	var rec recordstore.Record
	err := b.records.FindOne(ctx, bson.M{"table": table, "row_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Scan returns up to limit records of table with ids above afterID.
func (b *Backend) Scan(ctx context.Context, table string, afterID int64, limit int) ([]*recordstore.Record, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "row_id", Value: 1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	cursor, err := b.records.Find(ctx, bson.M{"table": table, "row_id": bson.M{"$gt": afterID}}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recs []*recordstore.Record
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Entries returns the change log of a record.
func (b *Backend) Entries(ctx context.Context, table string, rowID int64) ([]changelog.Entry, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := b.changeLog.Find(ctx, bson.M{"table": table, "row_id": rowID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []changelog.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Label returns the display label of a list item. item may be the numeric
// item id or the item's idno.
func (b *Backend) Label(ctx context.Context, listCode, item string) (string, error) {
	filter := bson.M{"list_code": listCode, "idno": item}
	if id, err := strconv.ParseInt(item, 10, 64); err == nil {
		filter = bson.M{"list_code": listCode, "$or": bson.A{bson.M{"item_id": id}, bson.M{"idno": item}}}
	}

	var doc struct {
		Label string `bson:"label"`
	}
	if err := b.listItems.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("%w: list item %s/%s", model.ErrNotFound, listCode, item)
		}
		return "", err
	}
	return doc.Label, nil
}

// Close disconnects from MongoDB.
func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
