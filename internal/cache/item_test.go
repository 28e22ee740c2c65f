package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklane/stacklane/internal/metrics"
	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
	"github.com/stacklane/stacklane/internal/repository/memory"
)

type fakeItemCache struct {
	mu       sync.Mutex
	items    map[string]*model.Item
	negative map[string]bool
	hits     int
	failGet  bool
}

func newFakeItemCache() *fakeItemCache {
	return &fakeItemCache{items: map[string]*model.Item{}, negative: map[string]bool{}}
}

func (f *fakeItemCache) GetItem(_ context.Context, id string) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errors.New("connection refused")
	}
	item, ok := f.items[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	f.hits++
	return item.Clone(), nil
}

func (f *fakeItemCache) SetItem(_ context.Context, item *model.Item, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item.Clone()
	delete(f.negative, item.ID)
	return nil
}

func (f *fakeItemCache) DeleteItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	delete(f.negative, id)
	return nil
}

func (f *fakeItemCache) IsNegativelyCached(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.negative[id], nil
}

func (f *fakeItemCache) SetNegativeCache(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negative[id] = true
	return nil
}

func newCachedItems(t *testing.T) (*CachedItems, *memory.ItemStore, *fakeItemCache) {
	t.Helper()
	store := memory.NewItemStore()
	fc := newFakeItemCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedItems(store, fc, time.Minute, logger, nil), store, fc
}

func TestCachedItems_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store := memory.NewItemStore()
	fc := newFakeItemCache()
	recorder := metrics.NewInMemory()
	repo := NewCachedItems(store, fc, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), recorder)

	store.Seed(&model.Item{ID: "i1", Name: "Widget", Quantity: 2})

	first, err := repo.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", first.Name)
	assert.Equal(t, 0, fc.hits)

	second, err := repo.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fc.hits)

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.ItemCacheHits)
	assert.Equal(t, uint64(1), snap.ItemCacheMisses)
}

func TestCachedItems_WritesInvalidateCache(t *testing.T) {
	ctx := context.Background()
	repo, _, fc := newCachedItems(t)

	created, err := repo.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Quantity: 5})
	require.NoError(t, err)

	_, err = repo.ReserveStock(ctx, created.ID, 2)
	require.NoError(t, err)
	assert.NotContains(t, fc.items, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, 0, fc.hits)

	got, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, 1, fc.hits)

	_, err = repo.Update(ctx, created.ID, model.ItemUpdate{Name: strPtr("Gadget")})
	require.NoError(t, err)
	got, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gadget", got.Name)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// gatedCache holds the first DeleteItem until release is closed.
type gatedCache struct {
	*fakeItemCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCache) DeleteItem(ctx context.Context, id string) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeItemCache.DeleteItem(ctx, id)
}

func TestCachedItems_OutOfOrderWritersLeaveNoStaleCopy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewItemStore()
	gc := &gatedCache{fakeItemCache: newFakeItemCache(), entered: make(chan struct{}), release: make(chan struct{})}
	repo := NewCachedItems(store, gc, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	store.Seed(&model.Item{ID: "i1", Name: "Widget", IsActive: true, Quantity: 10})

	done := make(chan error, 1)
	go func() {
		_, err := repo.ReserveStock(ctx, "i1", 1)
		done <- err
	}()
	<-gc.entered

	// The second writer finishes entirely while the first is still in flight.
	_, err := repo.ReserveStock(ctx, "i1", 1)
	require.NoError(t, err)
	_, err = repo.Get(ctx, "i1")
	require.NoError(t, err)

	close(gc.release)
	require.NoError(t, <-done)

	cached, err := repo.Get(ctx, "i1")
	require.NoError(t, err)
	stored, err := store.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 8, stored.Quantity)
	assert.Equal(t, stored.Quantity, cached.Quantity)
}

func TestCachedItems_ConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newCachedItems(t)
	store.Seed(&model.Item{ID: "i1", Name: "Widget", IsActive: true, Quantity: 50})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.ReserveStock(ctx, "i1", 1)
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Quantity)
}

func TestCachedItems_NegativeCache(t *testing.T) {
	ctx := context.Background()
	repo, store, fc := newCachedItems(t)

	_, err := repo.Get(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.True(t, fc.negative["ghost"])

	// Seeding behind the cache's back is hidden by the negative entry.
	store.Seed(&model.Item{ID: "ghost", Name: "Ghost"})
	_, err = repo.Get(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Creating through the decorator clears it.
	_, err = repo.Get(ctx, "later")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.Create(ctx, "later", model.ItemCreate{Name: "Later"})
	require.NoError(t, err)
	assert.False(t, fc.negative["later"])
	got, err := repo.Get(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, "Later", got.Name)
}

func TestCachedItems_CacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	repo, store, fc := newCachedItems(t)
	fc.failGet = true

	store.Seed(&model.Item{ID: "i1", Name: "Widget"})

	got, err := repo.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
}

func strPtr(s string) *string { return &s }
