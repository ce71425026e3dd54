package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lingodeck/api/utils/cache"
)

const pendingKeyPrefix = "progress:pending:"

// RedisPendingQueue persists pending progress updates in a Redis hash per
// user, field-keyed by lesson id so a newer update overwrites the queued
// one.
type RedisPendingQueue struct {
	cache *cache.RedisCache
}

// NewRedisPendingQueue creates a queue over the given Redis cache.
func NewRedisPendingQueue(redisCache *cache.RedisCache) *RedisPendingQueue {
	return &RedisPendingQueue{cache: redisCache}
}

func pendingKey(userID uint) string {
	return fmt.Sprintf("%s%d", pendingKeyPrefix, userID)
}

func (q *RedisPendingQueue) Put(ctx context.Context, update PendingUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return q.cache.HSet(ctx, pendingKey(update.UserID),
		strconv.FormatUint(uint64(update.LessonID), 10), payload)
}

func (q *RedisPendingQueue) List(ctx context.Context, userID uint) ([]PendingUpdate, error) {
	fields, err := q.cache.HGetAll(ctx, pendingKey(userID))
	if err != nil {
		return nil, err
	}

	updates := make([]PendingUpdate, 0, len(fields))
	for _, raw := range fields {
		var update PendingUpdate
		if err := json.Unmarshal([]byte(raw), &update); err != nil {
			// A corrupt entry should not wedge the whole queue.
			continue
		}
		updates = append(updates, update)
	}
	return updates, nil
}

func (q *RedisPendingQueue) Delete(ctx context.Context, userID, lessonID uint) error {
	return q.cache.HDel(ctx, pendingKey(userID),
		strconv.FormatUint(uint64(lessonID), 10))
}

func (q *RedisPendingQueue) Users(ctx context.Context) ([]uint, error) {
	keys, err := q.cache.Keys(ctx, pendingKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	users := make([]uint, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseUint(strings.TrimPrefix(key, pendingKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		users = append(users, uint(id))
	}
	return users, nil
}
