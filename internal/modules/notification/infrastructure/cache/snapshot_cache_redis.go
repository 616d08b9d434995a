package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/repository"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rxdash:notifications:"

type snapshotDoc struct {
	SavedAt time.Time             `json:"savedAt"`
	Items   []entity.Notification `json:"items"`
}

type redisSnapshotRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSnapshotRepository ttl <= 0 表示不过期
func NewRedisSnapshotRepository(client redis.UniversalClient, ttl time.Duration) repository.SnapshotRepository {
	return &redisSnapshotRepository{client: client, ttl: ttl}
}

func SnapshotKey(principal string) string {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		principal = "anonymous"
	}
	return keyPrefix + principal
}

func (r *redisSnapshotRepository) Save(ctx context.Context, principal string, records []entity.Notification) error {
	b, err := encodeSnapshot(records, time.Now())
	if err != nil {
		return err
	}
	return r.client.Set(ctx, SnapshotKey(principal), b, r.ttl).Err()
}

func (r *redisSnapshotRepository) Load(ctx context.Context, principal string) ([]entity.Notification, error) {
	b, err := r.client.Get(ctx, SnapshotKey(principal)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(b)
}

func (r *redisSnapshotRepository) Delete(ctx context.Context, principal string) error {
	return r.client.Del(ctx, SnapshotKey(principal)).Err()
}

func encodeSnapshot(records []entity.Notification, now time.Time) ([]byte, error) {
	if records == nil {
		records = []entity.Notification{}
	}
	return json.Marshal(snapshotDoc{SavedAt: now, Items: records})
}

func decodeSnapshot(b []byte) ([]entity.Notification, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode notification snapshot: %w", err)
	}
	return doc.Items, nil
}
