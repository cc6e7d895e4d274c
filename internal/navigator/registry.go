package navigator

import (
	"sync"
	"time"
)

type entry struct {
	nav      *Navigator
	lastSeen time.Time
}

// Registry хранит навигаторы браузерных клиентов по идентификатору клиента.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*entry
	ttl     time.Duration
	setup   func(*Navigator)
	now     func() time.Time
}

// NewRegistry создаёт реестр; клиенты, не обращавшиеся дольше ttl, удаляются при Prune.
// setup, если задана, вызывается для каждого нового навигатора (например, для OnRefresh).
func NewRegistry(ttl time.Duration, setup func(*Navigator)) *Registry {
	return &Registry{
		clients: make(map[string]*entry),
		ttl:     ttl,
		setup:   setup,
		now:     time.Now,
	}
}

// Get возвращает навигатор клиента, создавая его при первом обращении.
func (r *Registry) Get(clientID string) *Navigator {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[clientID]
	if !ok {
		e = &entry{nav: New()}
		if r.setup != nil {
			r.setup(e.nav)
		}
		r.clients[clientID] = e
	}
	e.lastSeen = r.now()
	return e.nav
}

// Prune удаляет устаревших клиентов и возвращает их количество.
func (r *Registry) Prune() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, e := range r.clients {
		if e.lastSeen.Before(cutoff) {
			delete(r.clients, id)
			removed++
		}
	}
	return removed
}

// Len возвращает число известных клиентов.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
