package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestItemStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	created, err := store.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Description: strPtr("blue"), Quantity: 3, UnitPriceCents: 250})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := store.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	again, err := store.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, got, again, "repeated reads must agree")

	require.NoError(t, store.Delete(ctx, "i1"))

	_, err = store.Get(ctx, "i1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "i1"), repository.ErrNotFound)
}

func TestItemStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	created, err := store.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Description: strPtr("blue")})
	require.NoError(t, err)

	created.Name = "mutated"
	*created.Description = "mutated"

	got, err := store.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, "blue", *got.Description)
}

func TestItemStore_DuplicateName(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	_, err := store.Create(ctx, "i1", model.ItemCreate{Name: "Widget"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "i2", model.ItemCreate{Name: "widget"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = store.Create(ctx, "i2", model.ItemCreate{Name: "Gadget"})
	require.NoError(t, err)

	_, err = store.Update(ctx, "i2", model.ItemUpdate{Name: strPtr("WIDGET")})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// Renaming to its own name with different case is allowed.
	renamed, err := store.Update(ctx, "i1", model.ItemUpdate{Name: strPtr("WIDGET")})
	require.NoError(t, err)
	assert.Equal(t, "WIDGET", renamed.Name)
}

func TestItemStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	_, err := store.Update(ctx, "missing", model.ItemUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	created, err := store.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Quantity: 1})
	require.NoError(t, err)

	qty := 10
	updated, err := store.Update(ctx, "i1", model.ItemUpdate{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Quantity)
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
}

func TestItemStore_ListPaging(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	for i := 0; i < 5; i++ {
		_, err := store.Create(ctx, fmt.Sprintf("i%d", i), model.ItemCreate{Name: fmt.Sprintf("item-%d", i)})
		require.NoError(t, err)
	}

	page, err := store.List(ctx, repository.Page{Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "i1", page[0].ID)
	assert.Equal(t, "i2", page[1].ID)

	tail, err := store.List(ctx, repository.Page{Skip: 4, Limit: 10})
	require.NoError(t, err)
	require.Len(t, tail, 1)

	empty, err := store.List(ctx, repository.Page{Skip: 10, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Delete(ctx, "i1"))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := store.List(ctx, repository.Page{Limit: 10})
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, it := range all {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"i0", "i2", "i3", "i4"}, ids)
}

func TestItemStore_ReserveStock(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	_, err := store.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Quantity: 2})
	require.NoError(t, err)

	_, err = store.ReserveStock(ctx, "i1", 3)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)

	got, err := store.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity, "failed reservation must not change stock")

	reserved, err := store.ReserveStock(ctx, "i1", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, reserved.Quantity)

	released, err := store.ReleaseStock(ctx, "i1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, released.Quantity)

	_, err = store.ReserveStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestItemStore_ConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	_, err := store.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Quantity: 10})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ReserveStock(ctx, "i1", 1)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, repository.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, success)
	got, err := store.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestItemStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewItemStore().Get(ctx, "i1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestItemStore_SeedAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore()

	store.Seed(&model.Item{ID: "s1", Name: "Seeded", Quantity: 1})
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Seeded", got.Name)

	store.Clear()
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrderStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	created, err := store.Create(ctx, &model.Order{ID: "o1", ItemID: "i1", Quantity: 2, UnitPriceCents: 100, TotalCents: 200})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = store.Create(ctx, &model.Order{ID: "o1", ItemID: "i1"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = store.Create(ctx, &model.Order{ID: "o2", ItemID: "i2", Quantity: 1})
	require.NoError(t, err)

	got, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	n, err := store.CountByItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := store.List(ctx, repository.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o1", list[0].ID)

	require.NoError(t, store.Delete(ctx, "o1"))
	_, err = store.Get(ctx, "o1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStores_EnforceItemReference(t *testing.T) {
	ctx := context.Background()
	items, orders := NewStores()

	_, err := items.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Quantity: 3})
	require.NoError(t, err)

	_, err = orders.Create(ctx, &model.Order{ID: "o1", ItemID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = orders.Create(ctx, &model.Order{ID: "o1", ItemID: "i1", Quantity: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, items.Delete(ctx, "i1"), repository.ErrInUse)

	require.NoError(t, orders.Delete(ctx, "o1"))
	require.NoError(t, items.Delete(ctx, "i1"))

	_, err = orders.Create(ctx, &model.Order{ID: "o2", ItemID: "i1", Quantity: 1})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStores_DeleteRacingOrdersLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		items, orders := NewStores()
		_, err := items.Create(ctx, "i1", model.ItemCreate{Name: "Widget", Quantity: 10})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = orders.Create(ctx, &model.Order{ID: "o1", ItemID: "i1", Quantity: 1})
		}()
		go func() {
			defer wg.Done()
			_ = items.Delete(ctx, "i1")
		}()
		wg.Wait()

		n, err := orders.CountByItem(ctx, "i1")
		require.NoError(t, err)
		_, getErr := items.Get(ctx, "i1")
		if n > 0 {
			require.NoError(t, getErr, "order o1 references a deleted item")
		} else {
			require.ErrorIs(t, getErr, repository.ErrNotFound)
		}
	}
}
