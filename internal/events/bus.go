// Package events broadcasts "cart changed" notifications so that every open
// session of a cart can refresh. Catalog changes travel on the same bus under
// CatalogKey, since they change the price of every cart.
package events

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	KindUpdated Kind = "updated"
	KindEmptied Kind = "emptied"
	KindOrdered Kind = "ordered"
	KindRebound Kind = "rebound"
	KindCatalog Kind = "catalog"
)

// CatalogKey is the cart id that catalog change events are published and
// subscribed under.
const CatalogKey = ""

// CatalogChanged returns the event announcing that product changed.
func CatalogChanged(productID string, at time.Time) CartChanged {
	return CartChanged{CartID: CatalogKey, Kind: KindCatalog, ProductID: productID, At: at}
}

type CartChanged struct {
	CartID    string    `json:"cartId"`
	Kind      Kind      `json:"kind"`
	ProductID string    `json:"productId,omitempty"`
	At        time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev CartChanged) error
	// Subscribe calls fn for every event on cartID until the returned cancel
	// function is called. fn must not block.
	Subscribe(cartID string, fn func(CartChanged)) (cancel func(), err error)
	Close() error
}

// Local is an in-process Bus.
type Local struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(CartChanged)
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]func(CartChanged))}
}

func (l *Local) Publish(_ context.Context, ev CartChanged) error {
	l.mu.RLock()
	fns := make([]func(CartChanged), 0, len(l.subs[ev.CartID]))
	for _, fn := range l.subs[ev.CartID] {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

func (l *Local) Subscribe(cartID string, fn func(CartChanged)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	if l.subs[cartID] == nil {
		l.subs[cartID] = make(map[int]func(CartChanged))
	}
	l.subs[cartID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs[cartID], id)
			if len(l.subs[cartID]) == 0 {
				delete(l.subs, cartID)
			}
		})
	}, nil
}

func (l *Local) Close() error {
	return nil
}
