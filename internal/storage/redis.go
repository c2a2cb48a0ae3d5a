package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// Redis keeps every document in a hash holding its value and version.
// Keys are the document paths under an optional prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects using a redis:// URL and verifies the connection.
func NewRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(path string) string {
	return r.prefix + path
}

func (r *Redis) Get(ctx context.Context, path string) (*Document, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}

	vals, err := r.client.HMGet(ctx, r.key(path), fieldValue, fieldVersion).Result()
	if err != nil {
		return nil, err
	}
	return decodeHash(path, vals)
}

func decodeHash(path string, vals []interface{}) (*Document, error) {
	if len(vals) != 2 || vals[0] == nil {
		return nil, ErrNotFound
	}

	value, _ := vals[0].(string)
	var version int64
	if v, ok := vals[1].(string); ok {
		var err error
		if version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("decode version of %s: %w", path, err)
		}
	}

	return &Document{Path: path, Value: []byte(value), Version: version}, nil
}

func (r *Redis) Set(ctx context.Context, path string, value []byte) error {
	if err := validPath(path); err != nil {
		return err
	}

	key := r.key(path)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldValue, value)
		pipe.HIncrBy(ctx, key, fieldVersion, 1)
		return nil
	})
	return err
}

func (r *Redis) CompareAndSet(ctx context.Context, path string, version int64, value []byte) error {
	if err := validPath(path); err != nil {
		return err
	}

	key := r.key(path)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldValue, value, fieldVersion, version+1)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (r *Redis) Children(ctx context.Context, parent string) ([]Document, error) {
	if err := validPath(parent); err != nil {
		return nil, err
	}

	prefix := r.key(parent) + "/"
	var docs []Document

	iter := r.client.Scan(ctx, 0, prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		rest := strings.TrimPrefix(key, prefix)
		if strings.Contains(rest, "/") {
			continue
		}

		path := strings.TrimPrefix(key, r.prefix)
		vals, err := r.client.HMGet(ctx, key, fieldValue, fieldVersion).Result()
		if err != nil {
			return nil, err
		}
		doc, err := decodeHash(path, vals)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sortDocuments(docs)
	return docs, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
