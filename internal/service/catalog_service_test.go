package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type mockCatalogReader struct {
	views []models.CourseView
	err   error
	calls int
}

func (m *mockCatalogReader) ListComposed(ctx context.Context) ([]models.CourseView, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.views, nil
}

type fakeCache struct {
	entries map[string][]byte
	getErr  error
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	c.deletes++
	return nil
}

func catalogFixture() []models.CourseView {
	return []models.CourseView{
		{
			Course:     models.Course{ID: "course-1", Title: "Go Basics", InstructorID: "instr-1"},
			Instructor: models.InstructorInfo{FirstName: "Ada", LastName: "Lovelace"},
			Lessons:    []models.Lesson{{ID: "lesson-1", CourseID: "course-1", Session: "Hello"}},
			Quizzes:    []models.Quiz{},
		},
	}
}

func TestComposeWarmCacheSkipsStorage(t *testing.T) {
	reader := &mockCatalogReader{views: catalogFixture()}
	cache := newFakeCache()
	svc := NewCatalogService(reader, cache, time.Minute, nil)

	first, err := svc.Compose(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Compose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, "Go Basics", second[0].Title)
	assert.Equal(t, "Ada", second[0].Instructor.FirstName)
}

func TestComposeCacheFaultFallsThrough(t *testing.T) {
	reader := &mockCatalogReader{views: catalogFixture()}
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	svc := NewCatalogService(reader, cache, time.Minute, nil)

	views, err := svc.Compose(context.Background())
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, 1, reader.calls)
}

func TestComposeWithoutCache(t *testing.T) {
	reader := &mockCatalogReader{views: catalogFixture()}
	svc := NewCatalogService(reader, nil, time.Minute, nil)

	views, err := svc.Compose(context.Background())
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestInvalidateDropsCachedCatalog(t *testing.T) {
	reader := &mockCatalogReader{views: catalogFixture()}
	cache := newFakeCache()
	svc := NewCatalogService(reader, cache, time.Minute, nil)

	_, err := svc.Compose(context.Background())
	require.NoError(t, err)
	require.Contains(t, cache.entries, catalogCacheKey)

	svc.Invalidate(context.Background())
	assert.NotContains(t, cache.entries, catalogCacheKey)
	assert.Equal(t, 1, cache.deletes)

	_, err = svc.Compose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)
}
