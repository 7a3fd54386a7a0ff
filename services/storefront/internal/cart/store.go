// Package cart holds the session cart store and its persistence adapter.
package cart

import (
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// Listener receives a full snapshot of the cart after a state-changing mutation.
type Listener func(domain.Cart)

// Option configures a Store.
type Option func(*Store)

// WithOnChange sets the hook invoked after every state-changing mutation.
// The hook runs synchronously and its outcome is not observed by the store.
func WithOnChange(fn Listener) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

type subscription struct {
	id int
	fn Listener
}

// Store is the authoritative set of line items for one cart session.
//
// A Store is owned by exactly one logical session and is not safe for
// concurrent use. Totals are derived from the current items on every read.
type Store struct {
	items map[string]*domain.LineItem
	order []string

	onChange    Listener
	subscribers []subscription
	nextSubID   int
}

// NewStore creates a store seeded with the given cart. The seed is normalized:
// identities are recomputed, duplicates merged and non-positive quantities
// dropped.
func NewStore(initial domain.Cart, opts ...Option) *Store {
	s := &Store{items: make(map[string]*domain.LineItem)}
	for _, opt := range opts {
		opt(s)
	}
	for _, item := range Normalize(initial).Items {
		item := item
		s.items[item.ID] = &item
		s.order = append(s.order, item.ID)
	}
	return s
}

// Subscribe registers an observer that is notified after every state-changing
// mutation. The returned function removes the observer.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscription{id: id, fn: fn})

	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// AddItem adds quantity units of the product with the given selection. An
// existing line with the same identity has its quantity increased and its
// product snapshot refreshed; otherwise a new line is inserted. Quantities
// below one are treated as one.
//
// Identities are plain joined strings, so a different product can own the
// same identity (product "mug" with Color Red and product "mug-Color-Red").
// Such an add leaves the cart untouched, returns the line that holds the
// identity and reports false.
func (s *Store) AddItem(product domain.Product, selected domain.SelectedVariants, quantity int) (domain.LineItem, bool) {
	if quantity < 1 {
		quantity = 1
	}

	id := domain.LineItemIdentity(product.ID, selected)
	if existing, ok := s.items[id]; ok {
		if existing.Product.ID != product.ID {
			return cloneItem(*existing), false
		}
		existing.Quantity += quantity
		existing.Product = product
	} else {
		s.items[id] = &domain.LineItem{
			ID:               id,
			Product:          product,
			Quantity:         quantity,
			SelectedVariants: selected.Clone(),
		}
		s.order = append(s.order, id)
	}

	item := cloneItem(*s.items[id])
	s.notify()
	return item, true
}

// RemoveItem deletes the line item with the given identity. Removing an absent
// identity is a no-op. It reports whether an item was removed.
func (s *Store) RemoveItem(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	s.remove(id)
	s.notify()
	return true
}

// UpdateQuantity sets the quantity of a line item verbatim. A quantity of zero
// or less removes the item. It reports whether the cart changed.
func (s *Store) UpdateQuantity(id string, quantity int) bool {
	item, ok := s.items[id]
	if !ok {
		return false
	}
	if quantity <= 0 {
		s.remove(id)
		s.notify()
		return true
	}
	if item.Quantity == quantity {
		return false
	}
	item.Quantity = quantity
	s.notify()
	return true
}

// Clear empties the cart.
func (s *Store) Clear() {
	if len(s.items) == 0 {
		return
	}
	s.items = make(map[string]*domain.LineItem)
	s.order = nil
	s.notify()
}

// Item returns a copy of the line item with the given identity.
func (s *Store) Item(id string) (domain.LineItem, bool) {
	item, ok := s.items[id]
	if !ok {
		return domain.LineItem{}, false
	}
	return cloneItem(*item), true
}

// Len returns the number of distinct line items.
func (s *Store) Len() int {
	return len(s.items)
}

// TotalItemCount returns the sum of quantities across all line items.
func (s *Store) TotalItemCount() int {
	var count int
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Subtotal returns the sum of effective unit price times quantity.
func (s *Store) Subtotal() int64 {
	var subtotal int64
	for _, item := range s.items {
		subtotal += domain.EffectiveUnitPrice(*item) * int64(item.Quantity)
	}
	return subtotal
}

// Snapshot returns an independent copy of the cart in insertion order.
func (s *Store) Snapshot() domain.Cart {
	items := make([]domain.LineItem, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, cloneItem(*s.items[id]))
	}
	return domain.Cart{Items: items}
}

func (s *Store) remove(id string) {
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) notify() {
	if s.onChange == nil && len(s.subscribers) == 0 {
		return
	}
	snapshot := s.Snapshot()
	if s.onChange != nil {
		s.onChange(snapshot)
	}
	for _, sub := range s.subscribers {
		sub.fn(snapshot)
	}
}

func cloneItem(item domain.LineItem) domain.LineItem {
	item.SelectedVariants = item.SelectedVariants.Clone()
	return item
}

// Normalize restores the cart invariants on untrusted input: identities are
// recomputed from product id and selection, lines sharing an identity are
// merged and lines with a non-positive quantity are dropped. The first
// occurrence of an identity keeps its position.
func Normalize(c domain.Cart) domain.Cart {
	index := make(map[string]int, len(c.Items))
	items := make([]domain.LineItem, 0, len(c.Items))

	for _, item := range c.Items {
		if item.Quantity <= 0 {
			continue
		}
		item = cloneItem(item)
		item.ID = domain.LineItemIdentity(item.Product.ID, item.SelectedVariants)

		if i, ok := index[item.ID]; ok {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}

	return domain.Cart{Items: items}
}
