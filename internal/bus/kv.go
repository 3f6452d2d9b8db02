package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrKeyNotFound is returned by KV.Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// KV is a small JSON blob store on a JetStream key/value bucket. The bucket
// TTL expires every key together, which gives the symbol snapshot keys their
// shared cache lifetime.
type KV struct {
	kv nats.KeyValue
}

// SnapshotStore opens (or creates) the named bucket with the given TTL.
func (b *Bus) SnapshotStore(bucket string, ttl time.Duration) (*KV, error) {
	js, err := b.conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: bucket,
			TTL:    ttl,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}

	return &KV{kv: kv}, nil
}

// Get returns the raw value for key, or ErrKeyNotFound.
func (s *KV) Get(key string) ([]byte, error) {
	entry, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put stores the raw value under key.
func (s *KV) Put(key string, value []byte) error {
	if _, err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}
