// Package registry holds the durable collection of price targets. All
// reads and writes go through one mutex so the command surface and the
// monitoring loop never observe a target mid-mutation, and a target
// deleted during a monitoring cycle cannot be resurrected by that
// cycle's write-back.
package registry

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"stock-target-bot/internal/types"
)

// Store is the persistence collaborator. Save failures are logged and
// retried on the next mutation; they never take the registry down.
type Store interface {
	LoadTargets() ([]types.Target, error)
	UpsertTarget(t types.Target) error
	DeleteTarget(ownerID int64, symbol string) error
	SaveAlertStates(targets []types.Target) error
}

type key struct {
	owner  int64
	symbol string
}

type Registry struct {
	mu      sync.Mutex
	targets map[key]types.Target
	store   Store
}

func New(store Store) *Registry {
	return &Registry{
		targets: make(map[key]types.Target),
		store:   store,
	}
}

// Load replaces the in-memory state with the persisted snapshot.
func (r *Registry) Load() error {
	targets, err := r.store.LoadTargets()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets = make(map[key]types.Target, len(targets))
	for _, t := range targets {
		r.targets[key{t.OwnerID, t.Symbol}] = t
	}
	log.Debugf("registry loaded %d targets", len(targets))
	return nil
}

// Upsert stores a target, overwriting any existing one for the same
// (owner, symbol) pair. Overwriting resets the alert state: the new
// target starts idle regardless of what the old one had sent.
func (r *Registry) Upsert(t types.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.LiveMessage = types.MessageRef{}
	t.ApproachSent = false
	r.targets[key{t.OwnerID, t.Symbol}] = t

	if err := r.store.UpsertTarget(t); err != nil {
		log.Errorf("failed to persist target %s for %d: %v", t.Symbol, t.OwnerID, err)
	}
	return nil
}

// Delete removes a target and returns the removed copy so the caller
// can clean up its outstanding notification.
func (r *Registry) Delete(ownerID int64, symbol string) (types.Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{ownerID, symbol}
	t, ok := r.targets[k]
	if !ok {
		return types.Target{}, false
	}
	delete(r.targets, k)

	if err := r.store.DeleteTarget(ownerID, symbol); err != nil {
		log.Errorf("failed to delete persisted target %s for %d: %v", symbol, ownerID, err)
	}
	return t, true
}

func (r *Registry) Get(ownerID int64, symbol string) (types.Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[key{ownerID, symbol}]
	return t, ok
}

// ForOwner returns copies of one user's targets, sorted by symbol.
func (r *Registry) ForOwner(ownerID int64) []types.Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Target
	for k, t := range r.targets {
		if k.owner == ownerID {
			out = append(out, t)
		}
	}
	sortTargets(out)
	return out
}

// Snapshot returns a stable copy of every target for iteration by the
// monitoring loop. Concurrent mutation cannot affect the returned slice.
func (r *Registry) Snapshot() []types.Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	sortTargets(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

// ApplyAlertStates applies the monitoring loop's batched alert-state
// mutations. Updates whose target was deleted (or overwritten) since the
// cycle's snapshot are dropped; everything else is persisted in one call.
func (r *Registry) ApplyAlertStates(updates []types.Target) {
	if len(updates) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	applied := make([]types.Target, 0, len(updates))
	for _, u := range updates {
		k := key{u.OwnerID, u.Symbol}
		current, ok := r.targets[k]
		if !ok || !current.CreatedAt.Equal(u.CreatedAt) {
			log.Debugf("dropping stale alert state for %s/%d", u.Symbol, u.OwnerID)
			continue
		}
		current.LiveMessage = u.LiveMessage
		current.ApproachSent = u.ApproachSent
		r.targets[k] = current
		applied = append(applied, current)
	}

	if err := r.store.SaveAlertStates(applied); err != nil {
		log.Errorf("failed to persist alert states: %v", err)
	}
}

func sortTargets(targets []types.Target) {
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].OwnerID != targets[j].OwnerID {
			return targets[i].OwnerID < targets[j].OwnerID
		}
		return targets[i].Symbol < targets[j].Symbol
	})
}
