package engine

import (
	"os/exec"
	"sort"
	"sync"
)

// handle owns one supervised OS process. No other component may wait on or
// signal the child directly; the reaper goroutine performs the single Wait
// and publishes the result on waitCh.
type handle struct {
	cat  Category
	id   string
	pid  int
	meta Meta
	cmd  *exec.Cmd

	waitCh chan waitResult
}

type waitResult struct {
	code *int
	err  error
}

// registry is the category-partitioned table of live processes. A single
// mutex guards all three maps so that reserve is an atomic check-then-insert.
// An id being present is the engine's only notion of "running"; a nil value
// marks a slot reserved by a launch whose spawn has not finished yet.
type registry struct {
	mu   sync.Mutex
	cats map[Category]map[string]*handle
}

func newRegistry() *registry {
	return &registry{cats: map[Category]map[string]*handle{
		CategoryService:       {},
		CategoryProjectScript: {},
		CategoryGlobalScript:  {},
	}}
}

// reserve claims the (category, id) slot. It fails when the slot is occupied,
// whether by a live handle or a concurrent launch still spawning.
func (r *registry) reserve(cat Category, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.cats[cat]
	if _, ok := m[id]; ok {
		return ErrAlreadyRunning
	}
	m[id] = nil
	return nil
}

// fulfill installs the spawned handle into a previously reserved slot.
func (r *registry) fulfill(h *handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cats[h.cat][h.id] = h
}

// release frees a reserved slot after a failed spawn so the id is
// immediately re-launchable.
func (r *registry) release(cat Category, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cats[cat], id)
}

// remove takes the handle out of the table, returning nil if the id is
// absent or its launch is still in flight.
func (r *registry) remove(cat Category, id string) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.cats[cat][id]
	if !ok || h == nil {
		return nil
	}
	delete(r.cats[cat], id)
	return h
}

func (r *registry) contains(cat Category, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cats[cat][id]
	return ok
}

// list returns a sorted snapshot of the ids registered in a category.
func (r *registry) list(cat Category) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.cats[cat]))
	for id := range r.cats[cat] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *registry) count(cat Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cats[cat])
}

// snapshot copies every registered (category, id, pid) triple. Reserved
// slots without a spawned process yet are skipped.
func (r *registry) snapshot() []*handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*handle
	for _, m := range r.cats {
		for _, h := range m {
			if h != nil {
				out = append(out, h)
			}
		}
	}
	return out
}

// drain empties every category map and returns the drained handles.
func (r *registry) drain() []*handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*handle
	for cat, m := range r.cats {
		for _, h := range m {
			if h != nil {
				out = append(out, h)
			}
		}
		r.cats[cat] = map[string]*handle{}
	}
	return out
}
