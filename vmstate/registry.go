package vmstate

import "unsafe"

// Registry records which live instances have registered state. It
// stands in for the migration subsystem: initialised devices register
// their descriptor here and unregister on teardown.
type Registry struct {
	entries []entry
}

type entry struct {
	owner              any
	desc               *Description
	base               unsafe.Pointer
	aliasID            int
	requiredForVersion int
}

// Register records owner's state. The alias pair carries a legacy
// instance id; aliasID is -1 when unused.
func (r *Registry) Register(owner any, desc *Description, base unsafe.Pointer, aliasID, requiredForVersion int) {
	r.entries = append(r.entries, entry{
		owner:              owner,
		desc:               desc,
		base:               base,
		aliasID:            aliasID,
		requiredForVersion: requiredForVersion,
	})
}

// Unregister drops owner's record for desc.
func (r *Registry) Unregister(owner any, desc *Description) {
	for i, e := range r.entries {
		if e.owner == owner && e.desc == desc {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Registered reports whether owner has state registered.
func (r *Registry) Registered(owner any) bool {
	return r.Count(owner) > 0
}

// Count returns the number of records registered for owner.
func (r *Registry) Count(owner any) int {
	n := 0
	for _, e := range r.entries {
		if e.owner == owner {
			n++
		}
	}

	return n
}

// Len returns the total number of registered records.
func (r *Registry) Len() int {
	return len(r.entries)
}
