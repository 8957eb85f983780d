package qdev

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// NewBus creates a stand-alone bus of the given kind. A nil parent
// makes the bus a top-level reset target: it registers with the
// machine's reset-handler registry until freed.
func (m *Machine) NewBus(kind *BusKind, parent *Device, name string) *Bus {
	var b *Bus
	if kind.New != nil {
		b = kind.New()
	} else {
		b = new(Bus)
	}

	b.owned = true
	m.initBus(b, kind, parent, name)
	return b
}

// InitBus initializes a bus embedded in a parent device's instance
// struct and links it into the tree.
func (m *Machine) InitBus(b *Bus, kind *BusKind, parent *Device, name string) {
	m.initBus(b, kind, parent, name)
}

func (m *Machine) initBus(b *Bus, kind *BusKind, parent *Device, name string) {
	b.Kind = kind
	b.parent = parent
	b.machine = m

	switch {
	case name != "":
		b.Name = name

	case parent != nil && parent.ID != "":
		b.Name = fmt.Sprintf("%s.%d", parent.ID, len(parent.children))

	default:
		n := 0
		if parent != nil {
			n = len(parent.children)
		}

		b.Name = strings.ToLower(fmt.Sprintf("%s.%d", kind.Name, n))
	}

	if parent != nil {
		parent.children = append([]*Bus{b}, parent.children...)
	} else if b != m.root {
		m.resets.Register(b, b.ResetAll)
	}
}

// Free removes the bus from the tree, freeing every hosted device
// first. The root bus is never freed.
func (b *Bus) Free() {
	for len(b.children) > 0 {
		b.children[0].Free()
	}

	if b.parent != nil {
		b.parent.removeBus(b)
		b.parent = nil
	} else {
		if b == b.machine.root {
			panic("qdev: the root bus is never freed")
		}

		b.machine.resets.Unregister(b)
	}

	if b.owned {
		b.children = nil
		b.Kind = nil
	}
}

// Walk visits the bus and its subtree in pre-order: the bus first,
// then each hosted device and its buses. A non-nil error from either
// callback halts the walk.
func (b *Bus) Walk(devFn func(*Device) error, busFn func(*Bus) error) error {
	if busFn != nil {
		if err := busFn(b); err != nil {
			return err
		}
	}

	for _, d := range b.children {
		if err := d.Walk(devFn, busFn); err != nil {
			return err
		}
	}

	return nil
}

// ResetAll resets the bus subtree in pre-order. The walk halts with
// the first error a reset callback returns.
func (b *Bus) ResetAll() error {
	return b.Walk(resetDevice, resetBus)
}

func resetDevice(d *Device) error {
	if d.Kind.Reset != nil {
		return d.Kind.Reset(d)
	}

	return nil
}

func resetBus(b *Bus) error {
	if b.Kind.Reset != nil {
		return b.Kind.Reset(b)
	}

	return nil
}

var errStopWalk = errors.New("qdev: stop walk")

// EachDevice calls fn for every device under the bus in pre-order,
// stopping early when fn returns false.
func (b *Bus) EachDevice(fn func(*Device) bool) {
	b.Walk(func(d *Device) error {
		if !fn(d) {
			return errStopWalk
		}

		return nil
	}, nil)
}

// FindDeviceID searches the subtree for the device carrying the given
// id, in pre-order. Returns nil when the id is unset or unresolved.
func (b *Bus) FindDeviceID(id string) *Device {
	if id == "" {
		return nil
	}

	var found *Device
	b.EachDevice(func(d *Device) bool {
		if d.ID == id {
			found = d
			return false
		}

		return true
	})

	return found
}

// findRecursive returns the first bus in the subtree matching the
// name and kind filters, searching the bus itself first. An empty
// name and a nil kind each match everything.
func (b *Bus) findRecursive(name string, kind *BusKind) *Bus {
	match := true
	if name != "" && b.Name != name {
		match = false
	}

	if kind != nil && b.Kind != kind {
		match = false
	}

	if match {
		return b
	}

	for _, d := range b.children {
		for _, child := range d.children {
			if ret := child.findRecursive(name, kind); ret != nil {
				return ret
			}
		}
	}

	return nil
}

func (b *Bus) removeChild(d *Device) {
	if i := slices.Index(b.children, d); i >= 0 {
		b.children = slices.Delete(b.children, i, i+1)
	}
}

// deviceNames lists the hosted devices as `kind` or `kind/id`, the
// form the monitor shows when a path segment fails to resolve.
func (b *Bus) deviceNames() []string {
	names := make([]string, 0, len(b.children))
	for _, d := range b.children {
		name := d.Kind.Name
		if d.ID != "" {
			name += "/" + d.ID
		}

		names = append(names, name)
	}

	return names
}
