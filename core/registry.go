package core

import (
	"sync"

	"FileWatcher/lib/command"
)

// registry tracks detached processes until they exit.
type registry struct {
	mu      sync.Mutex
	entries map[*command.Process]struct{}
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[*command.Process]struct{}),
	}
}

func (r *registry) Register(p *command.Process) {
	r.mu.Lock()
	r.entries[p] = struct{}{}
	r.mu.Unlock()
}

func (r *registry) Unregister(p *command.Process) {
	r.mu.Lock()
	delete(r.entries, p)
	r.mu.Unlock()
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Release forgets every tracked process and returns them. The processes keep
// running.
func (r *registry) Release() []*command.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	released := make([]*command.Process, 0, len(r.entries))
	for p := range r.entries {
		released = append(released, p)
	}
	r.entries = make(map[*command.Process]struct{})
	return released
}
