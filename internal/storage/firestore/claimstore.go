package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ClaimStore implements dispatch.ClaimStore using Google Cloud Firestore.
// One document per claimed key; expired documents can be claimed again.
type ClaimStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewClaimStore(client *firestore.Client, collection string) *ClaimStore {
	return &ClaimStore{client: client, collection: collection, now: time.Now}
}

// claimRecord is the internal DB representation.
type claimRecord struct {
	Key       string    `firestore:"key"`
	ClaimedAt time.Time `firestore:"claimed_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

func (s *ClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ref := s.claimRef(key)
	now := s.now()
	record := claimRecord{Key: key, ClaimedAt: now, ExpiresAt: now.Add(ttl)}

	_, err := ref.Create(ctx, record)
	if err == nil {
		return true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return false, fmt.Errorf("failed to create claim %s: %w", key, err)
	}

	// Take over an expired claim.
	claimed := false
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = false
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				claimed = true
				return tx.Set(ref, record)
			}
			return err
		}
		var existing claimRecord
		if err := snap.DataTo(&existing); err != nil {
			return err
		}
		if existing.ExpiresAt.After(now) {
			return nil
		}
		claimed = true
		return tx.Set(ref, record)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check claim %s: %w", key, err)
	}
	return claimed, nil
}

func (s *ClaimStore) Release(ctx context.Context, key string) error {
	if _, err := s.claimRef(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to release claim %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes claims whose ttl has passed and returns how many were removed.
func (s *ClaimStore) PurgeExpired(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).Where("expires_at", "<=", s.now()).Documents(ctx)
	defer iter.Stop()

	removed := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("failed to iterate expired claims: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return removed, fmt.Errorf("failed to delete expired claim %s: %w", doc.Ref.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *ClaimStore) claimRef(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(hashKey(key))
}

// hashKey keeps document ids short and free of '/'.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
