package progress

import (
	"context"
	"fmt"

	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"go.elastic.co/apm"
)

// RedisCompletionStore keeps each completion set in a redis set
type RedisCompletionStore struct {
	KV driver.SetStore
}

var _ CompletionStore = &RedisCompletionStore{}

// NewRedisCompletionStore .
func NewRedisCompletionStore(KV driver.SetStore) *RedisCompletionStore {
	return &RedisCompletionStore{KV}
}

func completionKey(learnerID, courseID string) string {
	return fmt.Sprintf("progress:%s:%s", learnerID, courseID)
}

func (rs *RedisCompletionStore) Load(ctx context.Context, learnerID, courseID string) ([]string, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RedisCompletionStore.Load", "db.redis")
	defer apmSpan.End()

	return rs.KV.SMembers(ctx, completionKey(learnerID, courseID))
}

func (rs *RedisCompletionStore) Add(ctx context.Context, learnerID, courseID, lessonID string) (bool, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RedisCompletionStore.Add", "db.redis")
	defer apmSpan.End()

	n, err := rs.KV.SAdd(ctx, completionKey(learnerID, courseID), lessonID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (rs *RedisCompletionStore) AddAll(ctx context.Context, learnerID, courseID string, lessonIDs []string) (int, error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	apmSpan, ctx := apm.StartSpan(ctx, "RedisCompletionStore.AddAll", "db.redis")
	defer apmSpan.End()

	n, err := rs.KV.SAdd(ctx, completionKey(learnerID, courseID), lessonIDs...)
	return int(n), err
}
