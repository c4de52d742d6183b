// Package store holds the in-process mirror of a plant collection.
package store

import (
	"slices"
	"sync"

	"github.com/mgmu/greenlog/internal/plants"
)

// Local mirrors the plant collection of the current session. Snapshots from
// the backend replace it wholesale; writes the backend refused are applied to
// it instead. Nothing is persisted.
type Local struct {
	mu     sync.RWMutex
	plants []plants.Plant
}

func NewLocal() *Local {
	return &Local{}
}

// List returns a copy of the collection in insertion order.
func (l *Local) List() []plants.Plant {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.plants)
}

// Len returns the number of plants held.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.plants)
}

// Get returns the plant of given identifier.
func (l *Local) Get(id string) (plants.Plant, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.index(id)
	if i < 0 {
		return plants.Plant{}, false
	}
	return l.plants[i], true
}

// Replace overwrites the whole collection with list.
func (l *Local) Replace(list []plants.Plant) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plants = slices.Clone(list)
}

// Append adds p at the end of the collection.
func (l *Local) Append(p plants.Plant) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plants = append(l.plants, p)
}

// PrependLog puts e in front of the logs of the plant of given identifier. It
// reports whether the plant was found.
func (l *Local) PrependLog(id string, e plants.LogEntry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.plants[i] = l.plants[i].WithLog(e)
	return true
}

// Remove deletes the plant of given identifier and reports whether it was
// present.
func (l *Local) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.plants = slices.Delete(l.plants, i, i+1)
	return true
}

func (l *Local) index(id string) int {
	return slices.IndexFunc(l.plants, func(p plants.Plant) bool { return p.Id == id })
}
