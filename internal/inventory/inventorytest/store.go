// Package inventorytest provides an in-memory inventory repository for tests.
package inventorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gesticom/gesticom/internal/inventory"
)

// Store keeps stock rows and movements in memory.
type Store struct {
	mu        sync.Mutex
	stocks    map[string]inventory.Stock
	movements []inventory.Movement
	nextID    int64
	stores    map[int64]int64
}

type snapshot struct {
	stocks    map[string]inventory.Stock
	movements []inventory.Movement
	nextID    int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{stocks: make(map[string]inventory.Stock), stores: make(map[int64]int64)}
}

// AddStore registers storeID as owned by entityID.
func (s *Store) AddStore(storeID, entityID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[storeID] = entityID
}

func (s *Store) StoreEntity(ctx context.Context, storeID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entityID, ok := s.stores[storeID]
	if !ok {
		return 0, inventory.ErrStoreNotFound
	}
	return entityID, nil
}

func key(storeID, productID int64) string {
	return fmt.Sprintf("%d:%d", storeID, productID)
}

// Set seeds a stock quantity.
func (s *Store) Set(storeID, productID int64, qty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[key(storeID, productID)] = inventory.Stock{StoreID: storeID, ProductID: productID, Qty: qty}
}

// Qty returns the quantity on hand.
func (s *Store) Qty(storeID, productID int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stocks[key(storeID, productID)].Qty
}

// Movements returns a copy of the movement journal in insertion order.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.Movement(nil), s.movements...)
}

// Snapshot captures the current state for Restore.
func (s *Store) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		stocks:    make(map[string]inventory.Stock, len(s.stocks)),
		movements: append([]inventory.Movement(nil), s.movements...),
		nextID:    s.nextID,
	}
	for k, v := range s.stocks {
		snap.stocks[k] = v
	}
	return snap
}

// Restore rolls the store back to a Snapshot.
func (s *Store) Restore(v any) {
	snap, ok := v.(snapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks = snap.stocks
	s.movements = snap.movements
	s.nextID = snap.nextID
}

// WithTx runs fn and discards its writes when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	snap := s.Snapshot()
	if err := fn(ctx, s); err != nil {
		s.Restore(snap)
		return err
	}
	return nil
}

func (s *Store) GetStock(ctx context.Context, storeID, productID int64) (inventory.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stocks[key(storeID, productID)]; ok {
		return st, nil
	}
	return inventory.Stock{StoreID: storeID, ProductID: productID}, nil
}

func (s *Store) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.Movement{}
	for _, m := range s.movements {
		if m.StoreID == filter.StoreID && m.ProductID == filter.ProductID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetStockForUpdate(ctx context.Context, storeID, productID int64) (inventory.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stocks[key(storeID, productID)]; ok {
		return st, nil
	}
	return inventory.Stock{}, inventory.ErrStockNotFound
}

func (s *Store) UpsertStock(ctx context.Context, stock inventory.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[key(stock.StoreID, stock.ProductID)] = stock
	return nil
}

func (s *Store) InsertMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.movements = append(s.movements, m)
	return m, nil
}

var _ inventory.TxRepository = (*Store)(nil)
