package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedCatalog caches course structures in the KV store.
// Courses are read-only, so a cached copy is as good as a fresh one until it expires.
type CachedCatalog struct {
	Provider domain.CatalogProvider
	KV       driver.KeyValueDB
	TTL      time.Duration
	fetches  singleflight.Group
}

var _ domain.CatalogProvider = &CachedCatalog{}

// NewCachedCatalog wrap provider, ttl <= 0 disables caching
func NewCachedCatalog(Provider domain.CatalogProvider, KV driver.KeyValueDB, TTL time.Duration) *CachedCatalog {
	return &CachedCatalog{Provider: Provider, KV: KV, TTL: TTL}
}

func courseKey(courseID string) string {
	return "catalog:course:" + courseID
}

// GetCourse implement CatalogProvider
func (cc *CachedCatalog) GetCourse(ctx context.Context, cred domain.Credential, courseID string) (*domain.CourseModel, error) {
	if cc.TTL <= 0 {
		return cc.Provider.GetCourse(ctx, cred, courseID)
	}
	if cred.Empty() {
		return nil, domain.ErrUnauthenticated
	}

	apmSpan, ctx := apm.StartSpan(ctx, "CachedCatalog.GetCourse", "service")
	defer apmSpan.End()

	logger := logging.ExtractLoggerFromContext(ctx).With(zap.String("course.id", courseID))
	if course := cc.lookup(ctx, logger, courseID); course != nil {
		return course, nil
	}

	v, err, _ := cc.fetches.Do(courseID, func() (interface{}, error) {
		course, err := cc.Provider.GetCourse(ctx, cred, courseID)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(course); err == nil {
			if err := cc.KV.SetEX(ctx, courseKey(courseID), string(payload), cc.TTL); err != nil {
				logger.Warn("failed to cache course", zap.Error(err))
			}
		}
		return course, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CourseModel), nil
}

func (cc *CachedCatalog) lookup(ctx context.Context, logger *zap.Logger, courseID string) *domain.CourseModel {
	payload, err := cc.KV.Get(ctx, courseKey(courseID))
	if errors.Is(err, driver.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("course cache lookup failed", zap.Error(err))
		return nil
	}

	course := new(domain.CourseModel)
	if err := json.Unmarshal([]byte(payload), course); err == nil && course.Check() == nil {
		return course
	}
	logger.Warn("dropping corrupted course cache entry")
	if err := cc.KV.Delete(ctx, courseKey(courseID)); err != nil {
		logger.Warn("failed to drop course cache entry", zap.Error(err))
	}
	return nil
}
