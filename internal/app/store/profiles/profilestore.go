// internal/app/store/profiles/profilestore.go
package profilestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the profiles collection name.
const Collection = "profiles"

// Extras are caller-supplied fields applied on every Ensure, for new and
// existing profiles alike. Empty fields are left untouched.
type Extras struct {
	DisplayName string
}

// Store provides access to the profiles collection (one document per UID).
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a new profile store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection), now: func() time.Time { return time.Now().UTC() }}
}

// EnsureIndexes creates the secondary indexes. _id is the UID.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_profiles_email"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_profiles_role"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Get returns the profile for uid, or (nil, nil) when there is none.
func (s *Store) Get(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	err := s.c.FindOne(ctx, bson.M{"_id": uid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Ensure creates the profile for u with defaults, or refreshes updated_at on
// an existing one. Both paths apply extras. It is a single atomic upsert, so
// repeated calls never create a second document.
func (s *Store) Ensure(ctx context.Context, u identity.User, extras Extras) (*models.Profile, error) {
	p, err := s.ensure(ctx, u, extras)
	if wafflemongo.IsDup(err) {
		// Two first sign-ins raced on the insert; the loser now sees the
		// document and takes the update branch.
		p, err = s.ensure(ctx, u, extras)
	}
	return p, err
}

func (s *Store) ensure(ctx context.Context, u identity.User, extras Extras) (*models.Profile, error) {
	now := s.now()

	set := bson.M{"updated_at": now}
	onInsert := bson.M{
		"email":               u.Email,
		"photo_url":           u.PhotoURL,
		"role":                models.RoleParticipant,
		"onboarding_complete": false,
		"settings":            models.DefaultSettings(),
		"created_at":          now,
	}
	// A field must not appear in both operators.
	if extras.DisplayName != "" {
		set["display_name"] = extras.DisplayName
	} else {
		onInsert["display_name"] = u.DisplayName
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var p models.Profile
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": u.UID},
		bson.M{"$set": set, "$setOnInsert": onInsert},
		opts,
	).Decode(&p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateSettings replaces the settings sub-document. Last write wins.
func (s *Store) UpdateSettings(ctx context.Context, uid string, settings models.Settings) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$set": bson.M{"settings": settings, "updated_at": s.now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Count returns the number of profiles.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
