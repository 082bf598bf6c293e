package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory stores actors in memory for tests and local development.
type MemoryDirectory struct {
	mu     sync.RWMutex
	actors map[uuid.UUID]*Actor
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{actors: make(map[uuid.UUID]*Actor)}
}

// Add registers an actor, assigning an ID when it has none.
func (d *MemoryDirectory) Add(a Actor) Actor {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	d.actors[a.ID] = &a
	return a
}

func (d *MemoryDirectory) LookupActor(_ context.Context, id uuid.UUID) (*Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.actors[id]
	if !ok {
		return nil, ErrActorNotFound
	}
	cp := *a
	return &cp, nil
}

func (d *MemoryDirectory) IsDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.hasRole(id, RoleDoctor), nil
}

func (d *MemoryDirectory) IsPatient(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.hasRole(id, RolePatient), nil
}

func (d *MemoryDirectory) hasRole(id uuid.UUID, role Role) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.actors[id]
	return ok && a.Role == role
}
