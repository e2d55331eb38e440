package download

import (
	"sort"

	"github.com/handiism/halftunes/internal/model"
)

// Registry maps source identifiers to their download records.
//
// Registry is not safe for concurrent use. The Manager only touches it from
// its own goroutine.
type Registry struct {
	downloads map[string]*model.Download
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{downloads: make(map[string]*model.Download)}
}

// Get returns the record for id.
func (r *Registry) Get(id string) (*model.Download, bool) {
	d, ok := r.downloads[id]
	return d, ok
}

// Put stores d under d.ID, replacing any previous record.
func (r *Registry) Put(d *model.Download) {
	r.downloads[d.ID] = d
}

// Remove deletes the record for id. Removing a missing id is a no-op.
func (r *Registry) Remove(id string) {
	delete(r.downloads, id)
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.downloads)
}

// IDs returns the registered identifiers in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.downloads))
	for id := range r.downloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
