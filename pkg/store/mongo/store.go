// Package mongo implements [store.Store] on MongoDB.
//
// Uniqueness of (event, user) and (event, number) is enforced by unique
// indexes; sequences and claims use conditional single-document updates,
// which MongoDB applies atomically without a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/store"
)

const (
	collCertificates = "certificates"
	collSequences    = "event_sequences"
	collClaims       = "generation_claims"
)

// Store is a MongoDB-backed certificate store.
type Store struct {
	client *mongo.Client
	certs  *mongo.Collection
	seqs   *mongo.Collection
	claims *mongo.Collection
	logger *log.Logger
}

// Open connects to uri, selects database and ensures indexes exist.
func Open(ctx context.Context, uri, database string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	s := &Store{
		client: client,
		certs:  db.Collection(collCertificates),
		seqs:   db.Collection(collSequences),
		claims: db.Collection(collClaims),
		logger: logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.certs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("event_user"),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("event_number"),
		},
		{
			Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("event_sequence_unique").
				SetPartialFilterExpression(bson.M{"sequence": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type certDoc struct {
	ID              string    `bson:"_id"`
	EventID         string    `bson:"event_id"`
	UserID          string    `bson:"user_id"`
	Number          string    `bson:"number"`
	Sequence        *int64    `bson:"sequence,omitempty"`
	ParticipantName string    `bson:"participant_name"`
	EventTitle      string    `bson:"event_title"`
	CompletionDate  time.Time `bson:"completion_date"`
	VectorRef       string    `bson:"vector_ref"`
	RasterRef       string    `bson:"raster_ref"`
	GeneratedAt     time.Time `bson:"generated_at"`
}

func (d certDoc) certificate() *certificate.Certificate {
	return &certificate.Certificate{
		ID:              d.ID,
		EventID:         d.EventID,
		UserID:          d.UserID,
		Number:          d.Number,
		Sequence:        d.Sequence,
		ParticipantName: d.ParticipantName,
		EventTitle:      d.EventTitle,
		CompletionDate:  d.CompletionDate.UTC(),
		VectorRef:       d.VectorRef,
		RasterRef:       d.RasterRef,
		GeneratedAt:     d.GeneratedAt.UTC(),
	}
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*certificate.Certificate, error) {
	var doc certDoc
	err := s.certs.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.certificate(), nil
}

func (s *Store) Get(ctx context.Context, eventID, userID string) (*certificate.Certificate, error) {
	return s.findOne(ctx, bson.M{"event_id": eventID, "user_id": userID})
}

func (s *Store) GetByNumber(ctx context.Context, eventID, number string) (*certificate.Certificate, error) {
	return s.findOne(ctx, bson.M{"event_id": eventID, "number": number})
}

func (s *Store) List(ctx context.Context, eventID string) ([]certificate.Certificate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}, {Key: "number", Value: 1}})
	cur, err := s.certs.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []certDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]certificate.Certificate, len(docs))
	for i, d := range docs {
		out[i] = *d.certificate()
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, c *certificate.Certificate) error {
	if _, err := s.Get(ctx, c.EventID, c.UserID); err == nil {
		return store.ErrDuplicateCertificate
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err := s.certs.InsertOne(ctx, certDoc{
		ID:              c.ID,
		EventID:         c.EventID,
		UserID:          c.UserID,
		Number:          c.Number,
		Sequence:        c.Sequence,
		ParticipantName: c.ParticipantName,
		EventTitle:      c.EventTitle,
		CompletionDate:  c.CompletionDate.UTC(),
		VectorRef:       c.VectorRef,
		RasterRef:       c.RasterRef,
		GeneratedAt:     c.GeneratedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent insert may have won the participant slot.
		if _, gerr := s.Get(ctx, c.EventID, c.UserID); gerr == nil {
			return store.ErrDuplicateCertificate
		}
		return store.ErrNumberTaken
	}
	return err
}

type seqDoc struct {
	EventID string `bson:"_id"`
	Value   int64  `bson:"value"`
}

func (s *Store) Sequence(ctx context.Context, eventID string) (int64, error) {
	var doc seqDoc
	err := s.seqs.FindOne(ctx, bson.M{"_id": eventID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	return doc.Value, err
}

func (s *Store) CompareAndSwapSequence(ctx context.Context, eventID string, prev, next int64) (bool, error) {
	filter := bson.M{"_id": eventID, "value": prev}
	update := bson.M{"$set": bson.M{"value": next}}

	// A missing counter reads as zero, so the first swap may create it.
	opts := options.Update().SetUpsert(prev == 0)
	res, err := s.seqs.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1 || res.UpsertedCount == 1, nil
}

type claimKey struct {
	EventID string `bson:"event_id"`
	UserID  string `bson:"user_id"`
}

type claimDoc struct {
	Key       claimKey `bson:"_id"`
	Owner     string   `bson:"owner"`
	ClaimedAt int64    `bson:"claimed_at"`
}

func (s *Store) Claim(ctx context.Context, eventID, userID, owner string, ttl time.Duration) error {
	key := claimKey{EventID: eventID, UserID: userID}
	now := time.Now().UnixNano()

	_, err := s.claims.InsertOne(ctx, claimDoc{Key: key, Owner: owner, ClaimedAt: now})
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}

	var existing claimDoc
	err = s.claims.FindOne(ctx, bson.M{"_id": key}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return s.Claim(ctx, eventID, userID, owner, ttl)
	}
	if err != nil {
		return err
	}
	if existing.Owner != owner && time.Duration(now-existing.ClaimedAt) < ttl {
		return store.ErrClaimHeld
	}

	res, err := s.claims.UpdateOne(ctx,
		bson.M{"_id": key, "owner": existing.Owner, "claimed_at": existing.ClaimedAt},
		bson.M{"$set": bson.M{"owner": owner, "claimed_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount != 1 {
		return store.ErrClaimHeld
	}
	if existing.Owner != owner {
		s.logger.Warn("took over stale generation claim", "event", eventID, "user", userID, "previous", existing.Owner)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, eventID, userID, owner string) error {
	_, err := s.claims.DeleteOne(ctx, bson.M{
		"_id":   claimKey{EventID: eventID, UserID: userID},
		"owner": owner,
	})
	return err
}

var _ store.Store = (*Store)(nil)
