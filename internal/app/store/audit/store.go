// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the auth events collection name.
const Collection = "auth_events"

// Auth event types
const (
	EventSignUp          = "signup"
	EventLoginSuccess    = "login_success"
	EventLoginFailed     = "login_failed"
	EventLoginRateLimit  = "login_failed_rate_limit"
	EventLogout          = "logout"
	EventPasswordReset   = "password_reset_requested"
	EventProviderSuccess = "provider_login_success"
	EventProviderFailed  = "provider_login_failed"
)

// Event is one recorded auth event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`
	EventType string             `bson:"event_type"`

	// Method is "password" or a provider name.
	Method string `bson:"method,omitempty"`

	// Who. UID is empty when the attempt never reached an account.
	UID   string `bson:"uid,omitempty"`
	Email string `bson:"email,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success bool   `bson:"success"`
	Code    string `bson:"code,omitempty"` // auth error code on failure

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter narrows Query. Zero fields match everything.
type QueryFilter struct {
	UID       string
	Email     string
	EventType string
	Since     *time.Time
	Limit     int64
}

// Store manages auth event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// EnsureIndexes creates the query indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "uid", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an event, filling ID and Timestamp when unset.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query returns matching events, newest first. Limit defaults to 100.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	query := bson.M{}
	if filter.UID != "" {
		query["uid"] = filter.UID
	}
	if filter.Email != "" {
		query["email"] = filter.Email
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.Since != nil {
		query["timestamp"] = bson.M{"$gte": *filter.Since}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FailedLoginsSince counts failed password sign-ins for email since t.
func (s *Store) FailedLoginsSince(ctx context.Context, email string, t time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"email":      email,
		"event_type": bson.M{"$in": []string{EventLoginFailed, EventLoginRateLimit}},
		"timestamp":  bson.M{"$gte": t},
	})
}
