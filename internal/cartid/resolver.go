// Package cartid keeps the active cart id of one client installation.
package cartid

import (
	"sync"

	"github.com/google/uuid"
)

// Slot is the storage key the active cart id is kept under.
const Slot = "shoppingCartId"

// Storage is durable key/value storage local to one client.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

type Resolver struct {
	mu      sync.Mutex
	storage Storage
	newID   func() string
}

func NewResolver(storage Storage) *Resolver {
	return &Resolver{storage: storage, newID: uuid.NewString}
}

// Active returns the stored cart id, minting and persisting one when the
// slot is empty.
func (r *Resolver) Active() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok, err := r.storage.GetItem(Slot)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	return r.mint()
}

// Rotate replaces the active id with a fresh one. Documents of the previous
// cart are left as they are.
func (r *Resolver) Rotate() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mint()
}

// Use makes id the active cart id.
func (r *Resolver) Use(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storage.SetItem(Slot, id)
}

func (r *Resolver) mint() (string, error) {
	id := r.newID()
	if err := r.storage.SetItem(Slot, id); err != nil {
		return "", err
	}
	return id, nil
}
