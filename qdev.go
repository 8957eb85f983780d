// Package qdev assembles a machine from heterogeneous device models
// without board-specific wiring code. Device kinds register with a
// Machine; instances are created on buses, parameterised through a
// declarative property schema, initialised, and later unplugged. The
// resulting bus/device tree supports path lookup, pre-order traversal
// for reset, and state introspection through a vmstate descriptor.
//
// A kind's instance struct embeds Device as its first field. The
// kind's New callback allocates the struct and returns the embedded
// header; callbacks recover the full instance with an unsafe cast:
//
//	type blinker struct {
//		qdev.Device
//		Rate uint32
//	}
//
//	kind := &qdev.DeviceKind{
//		Name: "blinker",
//		Bus:  qdev.SystemBus,
//		Size: unsafe.Sizeof(blinker{}),
//		New:  func() *qdev.Device { return &new(blinker).Device },
//		Props: []prop.Property{
//			{Name: "rate", Kind: prop.Uint32{}, Offset: unsafe.Offsetof(blinker{}.Rate), Default: "1000"},
//		},
//		Init: func(d *qdev.Device) error {
//			b := (*blinker)(unsafe.Pointer(d))
//			...
//		},
//	}
//
// The package is single-threaded: every operation on a Machine must
// run under the caller's serialising guard.
package qdev

import (
	"io"
	"unsafe"

	"github.com/s7r/qdev/prop"
	"github.com/s7r/qdev/vmstate"
)

// State tracks a device through its lifecycle.
type State int

const (
	StateCreated State = iota
	StateInitialised
)

// DeviceKind describes a device type. It is immutable after
// registration.
type DeviceKind struct {

	// Name is unique among kinds hosted by the same bus kind.
	Name string

	// Alias is an alternate name accepted by lookups.
	Alias string

	// Desc is a human-readable description for kind listings.
	Desc string

	// NoUser hides the kind from device_add and its help listings.
	NoUser bool

	// Bus is the bus kind that hosts instances.
	Bus *BusKind

	// Size is unsafe.Sizeof the kind's instance struct. It must be at
	// least the size of the Device header.
	Size uintptr

	// New allocates a zeroed instance struct and returns its Device
	// header, which must be the struct's first field.
	New func() *Device

	// Props is the kind's property schema, applied in order.
	Props []prop.Property

	// Init brings a created instance up. On failure the instance is
	// freed and the error propagated.
	Init func(*Device) error

	// Exit, if set, runs while an initialised instance is freed.
	Exit func(*Device) error

	// Reset, if set, runs during a reset walk over the tree.
	Reset func(*Device) error

	// Unplug, if set, removes the device. It is mandatory for devices
	// on hotpluggable buses.
	Unplug func(*Device) error

	// VMState, if set, registers with the migration registry when an
	// instance initialises.
	VMState *vmstate.Description

	registered bool
}

// BusKind describes a bus type.
type BusKind struct {

	// Name identifies the kind; device kinds bind to it via their Bus
	// field.
	Name string

	// Size is unsafe.Sizeof the kind's bus struct, when New is set.
	Size uintptr

	// New allocates a zeroed bus struct and returns its Bus header,
	// which must be the struct's first field. When nil, a bare Bus is
	// allocated.
	New func() *Bus

	// Reset, if set, runs during a reset walk over the tree.
	Reset func(*Bus) error

	// PrintDev, if set, renders bus-specific device state in the
	// info tree listing.
	PrintDev func(w io.Writer, indent int, d *Device)

	// FirmwarePath, if set, names a hosted device's firmware path
	// segment; the device kind name is used otherwise.
	FirmwarePath func(d *Device) string

	// Props are imposed on every hosted device, after the device
	// kind's own schema.
	Props []prop.Property
}

// SystemBus is the kind of the synthetic main system bus at the root
// of every machine.
var SystemBus = &BusKind{Name: "System"}

// Device is the common header of every device instance.
type Device struct {

	// Kind is the descriptor the instance was created from.
	Kind *DeviceKind

	// ID is the user-assigned identifier, unique across the tree when
	// set.
	ID string

	// Hotplugged marks devices added after machine creation was
	// declared done.
	Hotplugged bool

	parent   *Bus
	children []*Bus
	state    State

	gpioIn  []*GPIOLine
	gpioOut []*GPIOLine

	aliasID                 int
	aliasRequiredForVersion int

	opts OptionBag
}

// Bus is a container node hosting devices of its kind.
type Bus struct {

	// Kind constrains which device kinds the bus may host.
	Kind *BusKind

	// Name is unique among the parent device's buses.
	Name string

	// AllowHotplug permits device creation and removal after machine
	// creation is declared done.
	AllowHotplug bool

	parent   *Device
	children []*Device
	machine  *Machine
	owned    bool
}

// base returns the instance storage base address. The header is the
// instance struct's first field, so the header address is the base.
func (d *Device) base() unsafe.Pointer {
	return unsafe.Pointer(d)
}

// Parent returns the bus hosting the device, or nil once freed.
func (d *Device) Parent() *Bus {
	return d.parent
}

// State returns the device's lifecycle state.
func (d *Device) State() State {
	return d.state
}

// ChildBuses returns the device's child buses in list order.
func (d *Device) ChildBuses() []*Bus {
	out := make([]*Bus, len(d.children))
	copy(out, d.children)
	return out
}

// ChildBus returns the device's child bus with the given name, or nil.
func (d *Device) ChildBus(name string) *Bus {
	for _, b := range d.children {
		if b.Name == name {
			return b
		}
	}

	return nil
}

// Machine returns the machine the device belongs to.
func (d *Device) Machine() *Machine {
	return d.parent.machine
}

// Parent returns the device the bus hangs off, or nil for the root
// bus and stand-alone reset targets.
func (b *Bus) Parent() *Device {
	return b.parent
}

// Devices returns the bus's hosted devices in list order.
func (b *Bus) Devices() []*Device {
	out := make([]*Device, len(b.children))
	copy(out, b.children)
	return out
}

// Machine returns the machine the bus belongs to.
func (b *Bus) Machine() *Machine {
	return b.machine
}
