// Package mongodb implements the storage contracts on top of the official
// MongoDB driver. Resource ids are ObjectID hex strings; sub-resources
// (communications, grades) live as embedded arrays on their parent document.
package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tsakani/shule/core"
)

const connectTimeout = 10 * time.Second

// Open connects to the configured MongoDB deployment and returns the app
// database plus a close function to be deferred by the caller.
func Open(ctx context.Context, conf *core.Config) (*mongo.Database, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.URI))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, nil, errors.Wrap(err, "pinging mongodb")
	}

	db := client.Database(conf.Database.Name)
	closeFn := func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), connectTimeout)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
	}
	return db, closeFn, nil
}

// EnsureIndexes creates the unique email index; call once at startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "creating users email index")
}
