// Package store is the Mongo persistence layer. Every write is partial: a
// $set merge or a $push append. Ledger records are never deleted and
// booking documents are never replaced wholesale, because other subsystems
// own sibling fields on the same documents.
package store

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
	"github.com/onpointsoft-solutions/shulegram/internal/models"
)

const queryTimeout = 5 * time.Second

// TransactionStore persists the payment ledger.
type TransactionStore struct {
	db *mongo.Database
}

func NewTransactionStore(db *mongo.Database) *TransactionStore {
	return &TransactionStore{db: db}
}

// EnsureIndexes creates the ledger indexes. The unique reference index is
// what turns a concurrent duplicate insert into a conflict instead of a
// twin ledger record.
func (s *TransactionStore) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := s.db.Collection("transactions").Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		log.Printf("Failed to create transaction indexes: %v", err)
		return apperr.Wrap(apperr.KindInternal, "create transaction indexes", err)
	}
	return nil
}

// Create inserts a new ledger record.
func (s *TransactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection("transactions").InsertOne(ctx, txn); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Newf(apperr.KindConflict, "transaction %s already exists", txn.Reference)
		}
		log.Printf("Failed to insert transaction %s: %v", txn.Reference, err)
		return apperr.Wrap(apperr.KindInternal, "insert transaction", err)
	}
	return nil
}

// GetByReference fetches one ledger record by its reference.
func (s *TransactionStore) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var txn models.Transaction
	if err := s.db.Collection("transactions").FindOne(ctx, bson.M{"reference": reference}).Decode(&txn); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.Newf(apperr.KindNotFound, "transaction %s not found", reference)
		}
		log.Printf("Failed to fetch transaction %s: %v", reference, err)
		return nil, apperr.Wrap(apperr.KindInternal, "fetch transaction", err)
	}
	return &txn, nil
}

// ListByBooking returns every payment attempt recorded against a booking,
// newest first.
func (s *TransactionStore) ListByBooking(ctx context.Context, bookingID string) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := s.db.Collection("transactions").Find(ctx,
		bson.M{"booking_id": bookingID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		log.Printf("Failed to fetch transactions for booking %s: %v", bookingID, err)
		return nil, apperr.Wrap(apperr.KindInternal, "fetch booking transactions", err)
	}
	defer cur.Close(ctx)

	var txns []models.Transaction
	if err := cur.All(ctx, &txns); err != nil {
		log.Printf("Failed to decode transactions for booking %s: %v", bookingID, err)
		return nil, apperr.Wrap(apperr.KindInternal, "decode booking transactions", err)
	}
	return txns, nil
}

// UpdateFields merges the given fields into the record. Fields not named
// are left untouched.
func (s *TransactionStore) UpdateFields(ctx context.Context, reference string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.Collection("transactions").UpdateOne(ctx,
		bson.M{"reference": reference}, bson.M{"$set": fields})
	if err != nil {
		log.Printf("Failed to update transaction %s: %v", reference, err)
		return apperr.Wrap(apperr.KindInternal, "update transaction", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "transaction %s not found", reference)
	}
	return nil
}

// TransitionStatus moves the record to the given status if and only if its
// current status is a legal source under the transition table, merging any
// extra fields in the same atomic update. It reports whether this caller
// won; false with a nil error means another writer already moved the
// record (or it sits in a terminal status), and the caller must skip any
// side effects tied to the transition.
func (s *TransactionStore) TransitionStatus(ctx context.Context, reference string, to models.TransactionStatus, fields bson.M) (bool, error) {
	sources := models.TransitionSources(to)
	if len(sources) == 0 {
		return false, apperr.Newf(apperr.KindConflict, "no transition leads to status %s", to)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"status": to}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.db.Collection("transactions").UpdateOne(ctx,
		bson.M{"reference": reference, "status": bson.M{"$in": sources}},
		bson.M{"$set": set})
	if err != nil {
		log.Printf("Failed to transition transaction %s to %s: %v", reference, to, err)
		return false, apperr.Wrap(apperr.KindInternal, "transition transaction status", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	count, err := s.db.Collection("transactions").CountDocuments(ctx, bson.M{"reference": reference})
	if err != nil {
		log.Printf("Failed to look up transaction %s after lost transition: %v", reference, err)
		return false, apperr.Wrap(apperr.KindInternal, "look up transaction", err)
	}
	if count == 0 {
		return false, apperr.Newf(apperr.KindNotFound, "transaction %s not found", reference)
	}
	return false, nil
}
