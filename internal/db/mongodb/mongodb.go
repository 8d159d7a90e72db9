// Package mongodb provides a MongoDB-based implementation of the user storage.
// Users live in the "users" collection keyed by their ID, with a unique index
// on email.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/patric-chuzhbe/sitegate/internal/models"
	"github.com/patric-chuzhbe/sitegate/internal/user"
)

const usersCollection = "users"

// MongoDB is a MongoDB-backed user storage.
type MongoDB struct {
	client            *mongo.Client
	users             *mongo.Collection
	connectionTimeout time.Duration
}

// New connects to MongoDB, checks the connection and makes sure the email
// index exists.
func New(
	ctx context.Context,
	uri string,
	database string,
	connectionTimeout time.Duration,
) (*MongoDB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `mongo.Connect()` calling: %w", err)
	}

	result := &MongoDB{
		client:            client,
		users:             client.Database(database).Collection(usersCollection),
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `result.Ping()` calling: %w", err)
	}

	_, err = result.users.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `CreateOne()` calling: %w", err)
	}

	return result, nil
}

func (db *MongoDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.users.InsertOne(ctx, usr)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrUserExists
	}

	return err
}

func (db *MongoDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	return db.findOne(ctx, bson.M{"_id": userID})
}

func (db *MongoDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.findOne(ctx, bson.M{"email": email})
}

// ListUsers returns every user ordered by creation time, then by ID.
func (db *MongoDB) ListUsers(ctx context.Context) ([]user.User, error) {
	cursor, err := db.users.Find(
		ctx,
		bson.D{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}

	result := []user.User{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (db *MongoDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.users.CountDocuments(ctx, bson.D{})
}

func (db *MongoDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.client.Ping(ctxWithTimeout, nil)
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), db.connectionTimeout)
	defer cancel()

	return db.client.Disconnect(ctx)
}

func (db *MongoDB) findOne(ctx context.Context, filter bson.M) (*user.User, error) {
	usr := &user.User{}
	err := db.users.FindOne(ctx, filter).Decode(usr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	return usr, nil
}
