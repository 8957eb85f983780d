package qdev

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/s7r/qdev/vmstate"
)

// Config describes a new machine.
type Config struct {

	// Logger receives lifecycle diagnostics.
	// If Logger is nil, slog.Default() is used.
	Logger *slog.Logger
}

// Machine holds the process-wide composition state: the device-kind
// registry, the bus/device tree, the hot-plug gate and the modified
// latch. Create one at startup and route every operation through it.
type Machine struct {
	log *slog.Logger

	kinds []*DeviceKind
	root  *Bus

	hotplug    bool
	hotAdded   bool
	hotRemoved bool

	globals   []GlobalProperty
	migration vmstate.Registry
	resets    ResetRegistry
}

// New creates an empty machine.
func New(cfg Config) *Machine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Machine{log: log}
}

// Register adds a device kind to the registry. Kinds register once at
// startup and are never removed. Lookups prefer later registrations.
func (m *Machine) Register(k *DeviceKind) {
	if k.Size < unsafe.Sizeof(Device{}) {
		panic(fmt.Sprintf("qdev: kind %q instance size %d is smaller than the device header", k.Name, k.Size))
	}

	if k.registered {
		panic(fmt.Sprintf("qdev: kind %q is already registered", k.Name))
	}

	if k.New == nil {
		panic(fmt.Sprintf("qdev: kind %q has no allocator", k.Name))
	}

	k.registered = true
	m.kinds = append([]*DeviceKind{k}, m.kinds...)
}

// Kinds returns the registered kinds in lookup order.
func (m *Machine) Kinds() []*DeviceKind {
	out := make([]*DeviceKind, len(m.kinds))
	copy(out, m.kinds)
	return out
}

// FindKind returns the first kind whose name matches, then retries
// against aliases. A non-nil busKind restricts the search to kinds
// hosted by it. Returns nil when unresolved.
func (m *Machine) FindKind(busKind *BusKind, name string) *DeviceKind {
	for _, k := range m.kinds {
		if busKind != nil && k.Bus != busKind {
			continue
		}

		if k.Name == name {
			return k
		}
	}

	for _, k := range m.kinds {
		if busKind != nil && k.Bus != busKind {
			continue
		}

		if k.Alias != "" && k.Alias == name {
			return k
		}
	}

	return nil
}

// Root returns the main system bus, creating it on first access.
func (m *Machine) Root() *Bus {
	if m.root == nil {
		m.root = &Bus{}
		m.initBus(m.root, SystemBus, nil, "main-system-bus")
	}

	return m.root
}

// HasRoot reports whether the root bus has been created yet.
func (m *Machine) HasRoot() bool {
	return m.root != nil
}

// CreationDone declares initial machine setup finished. From now on
// devices can only be created on hotpluggable buses.
func (m *Machine) CreationDone() {
	m.hotplug = true
}

// CreationIsDone reports whether initial machine setup has been
// declared finished.
func (m *Machine) CreationIsDone() bool {
	return m.hotplug
}

// Modified reports whether a device was hot-added after machine
// creation was declared done, or unplugged at any time.
func (m *Machine) Modified() bool {
	return m.hotAdded || m.hotRemoved
}

// Migration returns the machine's migration registry.
func (m *Machine) Migration() *vmstate.Registry {
	return &m.migration
}

// Resets returns the machine's reset-handler registry.
func (m *Machine) Resets() *ResetRegistry {
	return &m.resets
}

// SystemReset resets the whole tree and every registered top-level
// reset target.
func (m *Machine) SystemReset() error {
	if m.root != nil {
		if err := m.root.ResetAll(); err != nil {
			return err
		}
	}

	return m.resets.Run()
}

// GlobalProperty overrides a property default for every new instance
// of a kind. Globals apply after the kind and bus defaults and before
// user-supplied values.
type GlobalProperty struct {
	Driver   string
	Property string
	Value    string
}

// RegisterGlobal records a process-wide property override.
func (m *Machine) RegisterGlobal(g GlobalProperty) {
	m.globals = append(m.globals, g)
}

func (m *Machine) applyGlobals(d *Device) {
	for _, g := range m.globals {
		if g.Driver != d.Kind.Name {
			continue
		}

		if err := d.SetProperty(g.Property, g.Value); err != nil {
			m.log.Warn("global property rejected",
				"driver", g.Driver, "property", g.Property, "value", g.Value, "err", err)
		}
	}
}
