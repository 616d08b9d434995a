package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"RxDash/internal/modules/notification/domain/entity"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "rxdash:notifications:op-1", SnapshotKey(" op-1 "))
	assert.Equal(t, "rxdash:notifications:anonymous", SnapshotKey(""))
}

func TestSnapshotCodec(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	records := []entity.Notification{
		{
			LocalID:  "N1",
			ServerID: "665f",
			IsRead:   true,
			Payload: entity.Payload{
				Title:    "Driver assigned",
				Category: "delivery",
				Extra:    map[string]json.RawMessage{"driverId": json.RawMessage(`"d-7"`)},
			},
			ReceivedAt: at,
		},
		{LocalID: "N2"},
	}

	b, err := encodeSnapshot(records, at)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"savedAt":"2026-03-01T08:00:00Z"`)

	got, err := decodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	empty, err := encodeSnapshot(nil, at)
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"items":[]`)

	_, err = decodeSnapshot([]byte("{"))
	assert.Error(t, err)
}

func TestLoad_UnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	repo := NewRedisSnapshotRepository(client, time.Minute)

	_, err := repo.Load(context.Background(), "op-1")
	assert.Error(t, err)
	assert.Error(t, repo.Save(context.Background(), "op-1", nil))
}
