// Package memory provides in-process implementations of the basket store and
// the product catalog, used in development mode and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
)

var _ basket.Store = (*Store)(nil)

type state struct {
	baskets  map[int64]basket.Basket
	items    map[int64]basket.Item
	events   []basket.Event
	pending  map[string]bool
	basketID int64
	itemID   int64
}

// Store is a basket.Store kept in memory.
//
// A transaction buffers its writes and applies them on commit. GetForUpdate
// takes a per-basket lock held until the transaction ends, so transactions
// on different baskets run concurrently. Store.mu only guards short reads
// and the commit itself.
type Store struct {
	mu    sync.Mutex
	st    *state
	locks map[int64]chan struct{}
	now   func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		st: &state{
			baskets: map[int64]basket.Basket{},
			items:   map[int64]basket.Item{},
			pending: map[string]bool{},
		},
		locks: map[int64]chan struct{}{},
		now:   time.Now,
	}
}

// InTx implements basket.Store.
func (s *Store) InTx(ctx context.Context, fn func(basket.Repository) error) error {
	tx := newTx(s)
	defer tx.unlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx.commit(s.st)
	return nil
}

// lock acquires the lock of basket id, giving up when ctx is done.
func (s *Store) lock(ctx context.Context, id int64) error {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	s.mu.Unlock()

	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock(id int64) {
	s.mu.Lock()
	l := s.locks[id]
	s.mu.Unlock()
	<-l
}

func (s *Store) Create(ctx context.Context) (b basket.Basket, err error) {
	err = s.InTx(ctx, func(r basket.Repository) error { b, err = r.Create(ctx); return err })
	return b, err
}

func (s *Store) Get(ctx context.Context, id int64) (b basket.Basket, err error) {
	err = s.InTx(ctx, func(r basket.Repository) error { b, err = r.Get(ctx, id); return err })
	return b, err
}

func (s *Store) GetForUpdate(ctx context.Context, id int64) (b basket.Basket, err error) {
	err = s.InTx(ctx, func(r basket.Repository) error { b, err = r.GetForUpdate(ctx, id); return err })
	return b, err
}

func (s *Store) Save(ctx context.Context, b basket.Basket) error {
	return s.InTx(ctx, func(r basket.Repository) error { return r.Save(ctx, b) })
}

func (s *Store) Items(ctx context.Context, basketID int64) (items []basket.Item, err error) {
	err = s.InTx(ctx, func(r basket.Repository) error { items, err = r.Items(ctx, basketID); return err })
	return items, err
}

func (s *Store) GetItem(ctx context.Context, id int64) (item basket.Item, err error) {
	err = s.InTx(ctx, func(r basket.Repository) error { item, err = r.GetItem(ctx, id); return err })
	return item, err
}

func (s *Store) SaveItem(ctx context.Context, item basket.Item) (saved basket.Item, err error) {
	err = s.InTx(ctx, func(r basket.Repository) error { saved, err = r.SaveItem(ctx, item); return err })
	return saved, err
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(r basket.Repository) error { return r.DeleteItem(ctx, id) })
}

func (s *Store) DeleteItemsOf(ctx context.Context, basketID int64) error {
	return s.InTx(ctx, func(r basket.Repository) error { return r.DeleteItemsOf(ctx, basketID) })
}

func (s *Store) RecordEvent(ctx context.Context, e basket.Event) error {
	return s.InTx(ctx, func(r basket.Repository) error { return r.RecordEvent(ctx, e) })
}

// Pending returns up to limit unpublished events, oldest first.
func (s *Store) Pending(_ context.Context, limit int) ([]basket.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []basket.Event
	for _, e := range s.st.events {
		if len(out) == limit {
			break
		}
		if s.st.pending[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

// MarkPublished flags the given events as delivered.
func (s *Store) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.st.pending, id)
	}
	return nil
}

// tx is the Repository of one transaction. Reads see the committed state
// overlaid with the transaction's own writes.
type tx struct {
	s      *Store
	held   []int64
	locked map[int64]bool

	baskets map[int64]basket.Basket
	items   map[int64]basket.Item
	deleted map[int64]bool
	events  []basket.Event
}

func newTx(s *Store) *tx {
	return &tx{
		s:       s,
		locked:  map[int64]bool{},
		baskets: map[int64]basket.Basket{},
		items:   map[int64]basket.Item{},
		deleted: map[int64]bool{},
	}
}

func (t *tx) unlock() {
	for _, id := range t.held {
		t.s.unlock(id)
	}
}

func (t *tx) commit(st *state) {
	for id, b := range t.baskets {
		st.baskets[id] = b
	}
	for id := range t.deleted {
		delete(st.items, id)
	}
	for id, item := range t.items {
		st.items[id] = item
	}
	for _, e := range t.events {
		st.events = append(st.events, e)
		st.pending[e.ID] = true
	}
}

func (t *tx) Create(_ context.Context) (basket.Basket, error) {
	t.s.mu.Lock()
	t.s.st.basketID++
	id := t.s.st.basketID
	t.s.mu.Unlock()

	now := t.s.now()
	b := basket.Basket{
		ID:        id,
		Status:    basket.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.baskets[id] = b
	return b, nil
}

func (t *tx) Get(_ context.Context, id int64) (basket.Basket, error) {
	if b, ok := t.baskets[id]; ok {
		return b, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	b, ok := t.s.st.baskets[id]
	if !ok {
		return basket.Basket{}, basket.ErrNotFound
	}
	return b, nil
}

func (t *tx) GetForUpdate(ctx context.Context, id int64) (basket.Basket, error) {
	if !t.locked[id] {
		if err := t.s.lock(ctx, id); err != nil {
			return basket.Basket{}, err
		}
		t.locked[id] = true
		t.held = append(t.held, id)
	}
	return t.Get(ctx, id)
}

func (t *tx) Save(ctx context.Context, b basket.Basket) error {
	current, err := t.Get(ctx, b.ID)
	if err != nil {
		return err
	}
	current.Status = b.Status
	current.Total = b.Total
	now := t.s.now()
	if !now.After(current.UpdatedAt) {
		now = current.UpdatedAt.Add(time.Nanosecond)
	}
	current.UpdatedAt = now
	t.baskets[b.ID] = current
	return nil
}

func (t *tx) Items(_ context.Context, basketID int64) ([]basket.Item, error) {
	t.s.mu.Lock()
	var out []basket.Item
	for id, item := range t.s.st.items {
		if item.BasketID != basketID || t.deleted[id] {
			continue
		}
		if _, ok := t.items[id]; ok {
			continue
		}
		out = append(out, item)
	}
	t.s.mu.Unlock()

	for _, item := range t.items {
		if item.BasketID == basketID {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b basket.Item) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) GetItem(_ context.Context, id int64) (basket.Item, error) {
	if t.deleted[id] {
		return basket.Item{}, basket.ErrNotFound
	}
	if item, ok := t.items[id]; ok {
		return item, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	item, ok := t.s.st.items[id]
	if !ok {
		return basket.Item{}, basket.ErrNotFound
	}
	return item, nil
}

func (t *tx) SaveItem(ctx context.Context, item basket.Item) (basket.Item, error) {
	if item.ID == 0 {
		if _, err := t.Get(ctx, item.BasketID); err != nil {
			return basket.Item{}, err
		}
		t.s.mu.Lock()
		t.s.st.itemID++
		item.ID = t.s.st.itemID
		t.s.mu.Unlock()
	} else if _, err := t.GetItem(ctx, item.ID); err != nil {
		return basket.Item{}, err
	}
	t.items[item.ID] = item
	return item, nil
}

func (t *tx) DeleteItem(ctx context.Context, id int64) error {
	if _, err := t.GetItem(ctx, id); err != nil {
		return err
	}
	delete(t.items, id)
	t.deleted[id] = true
	return nil
}

func (t *tx) DeleteItemsOf(ctx context.Context, basketID int64) error {
	items, err := t.Items(ctx, basketID)
	if err != nil {
		return err
	}
	for _, item := range items {
		delete(t.items, item.ID)
		t.deleted[item.ID] = true
	}
	return nil
}

func (t *tx) RecordEvent(_ context.Context, e basket.Event) error {
	t.events = append(t.events, e)
	return nil
}
