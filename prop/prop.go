// Package prop implements the typed property system for device kinds.
//
// A property is a named, defaultable slot inside a device instance's
// storage. Each property references a Kind: a variant value that knows
// how to parse option text into the slot, print the slot back, and
// release whatever the slot holds. The schema itself stays data-only.
//
// Slots are addressed as an offset from the instance base, so a kind's
// schema is built with unsafe.Offsetof over its instance struct.
package prop

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrParseRejected is wrapped by every parse failure.
var ErrParseRejected = errors.New("prop: parse rejected")

// Kind is one variant of the property type table.
type Kind interface {

	// Name identifies the kind in help listings (e.g. "uint32").
	Name() string

	// Parse reads text and stores the value into the slot at base+off.
	// Malformed or out-of-range text fails with ErrParseRejected.
	Parse(base unsafe.Pointer, off uintptr, text string) error

	// Print renders the slot. Kinds that can't print are legacy and
	// are never shown to users.
	Print(base unsafe.Pointer, off uintptr) (string, bool)
}

// Freer is implemented by kinds whose slots hold releasable values.
type Freer interface {
	Free(base unsafe.Pointer, off uintptr)
}

// Property is one slot in a kind's schema.
type Property struct {

	// Name is the option key that sets the slot.
	Name string

	// Kind parses, prints and frees the slot.
	Kind Kind

	// Offset locates the slot within the instance struct.
	Offset uintptr

	// Default, when non-empty, is parsed into the slot before any
	// user-supplied value. It must be acceptable to Kind.
	Default string
}

// Find returns the named property, or nil.
func Find(props []Property, name string) *Property {
	for i := range props {
		if props[i].Name == name {
			return &props[i]
		}
	}

	return nil
}

// SetDefaults applies each property's declared default, in schema
// order. A default the kind's own parser rejects is a schema bug.
func SetDefaults(base unsafe.Pointer, props []Property) {
	for _, p := range props {
		if p.Default == "" {
			continue
		}

		if err := p.Kind.Parse(base, p.Offset, p.Default); err != nil {
			panic(fmt.Sprintf("prop: bad default %s=%q: %v", p.Name, p.Default, err))
		}
	}
}
