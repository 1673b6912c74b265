package memory

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
)

func TestStore_InTxCommitAndRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	b, err := s.Create(ctx)
	require.NoError(t, err)

	var item basket.Item
	err = s.InTx(ctx, func(r basket.Repository) error {
		if _, err := r.GetForUpdate(ctx, b.ID); err != nil {
			return err
		}
		item, err = r.SaveItem(ctx, basket.Item{BasketID: b.ID, ProductID: "fries", Quantity: 2})
		if err != nil {
			return err
		}
		items, err := r.Items(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, items, 1, "own writes are visible")
		return nil
	})
	require.NoError(t, err)

	rollback := errors.New("rollback")
	err = s.InTx(ctx, func(r basket.Repository) error {
		require.NoError(t, r.DeleteItem(ctx, item.ID))
		require.NoError(t, r.Save(ctx, b.WithStatus(basket.StatusCancelled)))
		require.NoError(t, r.RecordEvent(ctx, basket.Event{ID: "e1", BasketID: b.ID}))
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	items, err := s.Items(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []basket.Item{item}, items)
	got, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, basket.StatusOpen, got.Status)
	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_OtherBasketsProceedWhileLocked(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	slow, err := s.Create(ctx)
	require.NoError(t, err)
	other, err := s.Create(ctx)
	require.NoError(t, err)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(ctx, func(r basket.Repository) error {
			if _, err := r.GetForUpdate(ctx, slow.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return r.Save(ctx, slow.WithStatus(basket.StatusCheckedOut))
		})
	}()
	<-locked

	err = s.InTx(ctx, func(r basket.Repository) error {
		if _, err := r.GetForUpdate(ctx, other.ID); err != nil {
			return err
		}
		return r.Save(ctx, other.WithStatus(basket.StatusCancelled))
	})
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	got, err := s.Get(ctx, slow.ID)
	require.NoError(t, err)
	assert.Equal(t, basket.StatusCheckedOut, got.Status)
	got, err = s.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, basket.StatusCancelled, got.Status)
}

func TestStore_SameBasketWaitsForLock(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	b, err := s.Create(ctx)
	require.NoError(t, err)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(ctx, func(r basket.Repository) error {
			if _, err := r.GetForUpdate(ctx, b.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return r.Save(ctx, b.WithStatus(basket.StatusCancelled))
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.GetForUpdate(waitCtx, b.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	// The second transaction sees the first one's commit.
	err = s.InTx(ctx, func(r basket.Repository) error {
		got, err := r.GetForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, basket.StatusCancelled, got.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_SaveAdvancesUpdatedAt(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	b, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, b))
	first, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, b))
	second, err := s.Get(ctx, b.ID)
	require.NoError(t, err)

	assert.True(t, first.UpdatedAt.After(b.UpdatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.NotEqual(t, first.SnapshotToken(), second.SnapshotToken())
}

func TestStore_DeletedItemCannotBeSaved(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	b, err := s.Create(ctx)
	require.NoError(t, err)
	item, err := s.SaveItem(ctx, basket.Item{BasketID: b.ID, ProductID: "fries", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, s.DeleteItemsOf(ctx, b.ID))
	_, err = s.SaveItem(ctx, item.WithQuantity(3))
	require.ErrorIs(t, err, basket.ErrNotFound)

	_, err = s.SaveItem(ctx, basket.Item{BasketID: 404, ProductID: "fries", Quantity: 1})
	require.ErrorIs(t, err, basket.ErrNotFound)
}
