package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live code exists for the student.
var ErrNotFound = errors.New("otp not found")

// Store keeps at most one live reset code per student in Redis. Expiry
// rides on the key TTL; there is no application timer.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a store with the given code lifetime.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

func key(studentID string) string {
	return "campustrack:otp:" + studentID
}

// Put stores a code for the student, replacing any live one.
func (s *Store) Put(ctx context.Context, studentID, code string) error {
	return s.client.Set(ctx, key(studentID), code, s.ttl).Err()
}

// Get returns the live code for the student.
func (s *Store) Get(ctx context.Context, studentID string) (string, error) {
	val, err := s.client.Get(ctx, key(studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

// Delete consumes the live code.
func (s *Store) Delete(ctx context.Context, studentID string) error {
	return s.client.Del(ctx, key(studentID)).Err()
}

// GenerateCode returns a random 4-digit code.
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		// crypto/rand only fails when the platform source is broken
		return "0000"
	}
	return fmt.Sprintf("%d", n.Int64()+1000)
}
