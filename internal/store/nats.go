package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"closingdoors/internal/model"
)

// ConnMetrics receives NATS connectivity transitions.
type ConnMetrics interface {
	NATSSetConnected(connected bool)
}

// NATSStore keeps feed snapshots in a JetStream key-value bucket. The bucket
// holds one value per feed key with history 1, so every put replaces the
// previous snapshot.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

func NewNATSStore(url, bucket string, logger *slog.Logger, m ConnMetrics) (*NATSStore, error) {
	nc, err := nats.Connect(url,
		nats.Name("closingdoors"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	if m != nil {
		m.NATSSetConnected(true)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jetstream context")
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  bucket,
			History: 1,
		})
	}
	if err != nil {
		nc.Close()
		return nil, errors.Wrapf(err, "open kv bucket %s", bucket)
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

func (s *NATSStore) Close() {
	if s.nc != nil {
		_ = s.nc.Drain()
		s.nc.Close()
	}
}

func (s *NATSStore) PutSnapshot(_ context.Context, key string, snap *model.FeedSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, "encode snapshot %s", key)
	}
	if _, err := s.kv.Put(key, b); err != nil {
		return errors.Wrapf(err, "put snapshot %s", key)
	}
	return nil
}

func (s *NATSStore) GetSnapshot(_ context.Context, key string) (*model.FeedSnapshot, error) {
	entry, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get snapshot %s", key)
	}
	var snap model.FeedSnapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", key)
	}
	return &snap, nil
}
