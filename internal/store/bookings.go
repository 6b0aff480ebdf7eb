package store

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
	"github.com/onpointsoft-solutions/shulegram/internal/models"
)

// BookingStore reads and patches booking records. Bookings are created by
// the booking subsystem; this service only merges payment outcomes into
// them.
type BookingStore struct {
	db *mongo.Database
}

func NewBookingStore(db *mongo.Database) *BookingStore {
	return &BookingStore{db: db}
}

// Get fetches one booking by its id.
func (s *BookingStore) Get(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var booking models.Booking
	if err := s.db.Collection("bookings").FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.Newf(apperr.KindNotFound, "booking %s not found", id)
		}
		log.Printf("Failed to fetch booking %s: %v", id, err)
		return nil, apperr.Wrap(apperr.KindInternal, "fetch booking", err)
	}
	return &booking, nil
}

// UpdateFields merges the given fields into the booking and stamps
// updated_at. Sibling fields owned by other subsystems survive.
func (s *BookingStore) UpdateFields(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.db.Collection("bookings").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		log.Printf("Failed to update booking %s: %v", id, err)
		return apperr.Wrap(apperr.KindInternal, "update booking", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "booking %s not found", id)
	}
	return nil
}

// AppendActivity pushes one entry onto the booking's activity log.
func (s *BookingStore) AppendActivity(ctx context.Context, id string, entry models.ActivityEntry) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Collection("bookings").UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"activity_log": entry},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		log.Printf("Failed to append activity %q to booking %s: %v", entry.Action, id, err)
		return apperr.Wrap(apperr.KindInternal, "append booking activity", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "booking %s not found", id)
	}
	return nil
}
