// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TTL is how long a federated sign-in may stay pending.
const TTL = 10 * time.Minute

// Collection is the oauth states collection name.
const Collection = "oauth_states"

// State is a pending federated sign-in, keyed by the OAuth state token.
type State struct {
	State     string    `bson:"state"`
	Provider  string    `bson:"provider"`
	ReturnURL string    `bson:"return_url,omitempty"` // where to send the user afterwards
	Remember  bool      `bson:"remember"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth2 state tokens in MongoDB.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// EnsureIndexes creates indexes for efficient querying and TTL expiration.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Primary lookup by state
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_oauth_state"),
		},
		// TTL index for automatic cleanup
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_ttl"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save stores st. A zero ExpiresAt means now + TTL.
func (s *Store) Save(ctx context.Context, st State) error {
	now := time.Now().UTC()
	if st.ExpiresAt.IsZero() {
		st.ExpiresAt = now.Add(TTL)
	}
	st.CreatedAt = now
	_, err := s.c.InsertOne(ctx, st)
	return err
}

// Consume looks up an unexpired state and deletes it (one-time use).
// It returns (nil, nil) for an unknown or expired state.
func (s *Store) Consume(ctx context.Context, state string) (*State, error) {
	var st State
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CleanupExpired removes expired state tokens.
// This is a backup for when TTL index cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
