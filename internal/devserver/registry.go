package devserver

import (
	"sort"
	"sync"
)

// Controller is a connected live client.
type Controller struct {
	ID   string
	Name string
}

// Registry tracks connected controllers and the names they announced.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry executes the newRegistry function.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*Controller)}
}

// Register adds a controller under its session id with no name yet.
func (r *Registry) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.controllers[id]; !ok {
		r.controllers[id] = &Controller{ID: id}
	}
}

// Rename records the name announced by a change-name frame. It reports the
// previous name and whether the controller exists.
func (r *Registry) Rename(id string, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[id]
	if !ok {
		return "", false
	}
	prev := c.Name
	c.Name = name
	return prev, true
}

// Remove drops a controller.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, id)
}

// Name returns the controller name, or the empty string if unknown.
func (r *Registry) Name(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[id]; ok {
		return c.Name
	}
	return ""
}

// List returns the connected controllers ordered by name, then id.
func (r *Registry) List() []Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
