package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

const catalogCacheKey = "catalog:courses"

type composedCourseReader interface {
	ListComposed(ctx context.Context) ([]models.CourseView, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CatalogService serves the denormalized course catalog: every course root
// resolved with its instructor and child collections in a single response.
type CatalogService struct {
	courses  composedCourseReader
	cache    catalogCache
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCatalogService constructs CatalogService. The cache may be nil.
func NewCatalogService(courses composedCourseReader, cache catalogCache, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CatalogService{courses: courses, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// SetMetrics attaches cache instrumentation. A nil metrics service is a no-op.
func (s *CatalogService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Compose returns the composed catalog, serving from cache when warm. A
// cache fault is logged and falls through to storage.
func (s *CatalogService) Compose(ctx context.Context) ([]models.CourseView, error) {
	if s.cache != nil {
		var cached []models.CourseView
		err := s.cache.Get(ctx, catalogCacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		}
		s.metrics.RecordCacheLookup(false)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
	}

	views, err := s.courses.ListComposed(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose catalog")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, catalogCacheKey, views, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return views, nil
}

// Invalidate drops the cached catalog after a mutation.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogCacheKey); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
