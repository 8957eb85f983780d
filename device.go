package qdev

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/s7r/qdev/prop"
	"github.com/s7r/qdev/vmstate"
)

// NewDevice creates a device of the named kind on bus, leaving it in
// state Created with its property defaults applied. A nil bus selects
// the root bus. Returns nil when no kind matches.
func (m *Machine) NewDevice(bus *Bus, name string) *Device {
	if bus == nil {
		bus = m.Root()
	}

	kind := m.FindKind(bus.Kind, name)
	if kind == nil {
		return nil
	}

	return m.newDeviceFromKind(bus, kind)
}

// MustNewDevice is like NewDevice but panics when the kind is
// unknown. Intended for board construction code.
func (m *Machine) MustNewDevice(bus *Bus, name string) *Device {
	d := m.NewDevice(bus, name)
	if d == nil {
		if bus == nil {
			bus = m.Root()
		}

		panic(fmt.Sprintf("qdev: unknown device %q for bus %q", name, bus.Kind.Name))
	}

	return d
}

func (m *Machine) newDeviceFromKind(bus *Bus, kind *DeviceKind) *Device {
	if bus.Kind != kind.Bus {
		panic(fmt.Sprintf("qdev: kind %q does not attach to %s buses", kind.Name, bus.Kind.Name))
	}

	d := kind.New()
	d.Kind = kind
	d.parent = bus

	base := d.base()
	prop.SetDefaults(base, kind.Props)
	prop.SetDefaults(base, bus.Kind.Props)
	m.applyGlobals(d)

	bus.children = append([]*Device{d}, bus.children...)

	if m.hotplug {
		if !bus.AllowHotplug {
			panic(fmt.Sprintf("qdev: bus %q does not allow hotplugging", bus.Name))
		}

		d.Hotplugged = true
		m.hotAdded = true
		m.log.Info("hot-added device", "kind", kind.Name, "bus", bus.Name)
	}

	d.aliasID = -1
	d.state = StateCreated
	return d
}

// Init brings a created device up by invoking its kind's init
// callback. On failure the device is freed and the error returned.
// On success the state descriptor, if any, registers with the
// migration registry and the device transitions to Initialised.
func (d *Device) Init() error {
	if d.state != StateCreated {
		panic("qdev: init on an initialised device")
	}

	m := d.Machine()
	if err := d.Kind.Init(d); err != nil {
		d.Free()
		return err
	}

	if d.Kind.VMState != nil {
		m.migration.Register(d, d.Kind.VMState, d.base(), d.aliasID, d.aliasRequiredForVersion)
	}

	d.state = StateInitialised
	return nil
}

// MustInit is like Init but terminates the process on failure. It is
// only safe before machine creation is done, when there is nothing to
// recover.
func (d *Device) MustInit() {
	kind := d.Kind
	m := d.Machine()

	if err := d.Init(); err != nil {
		m.log.Error("device initialization failed", "kind", kind.Name, "err", err)
		os.Exit(1)
	}
}

// SetMigrationAlias assigns a legacy instance id honoured when the
// state descriptor registers for migration.
func (d *Device) SetMigrationAlias(aliasID, requiredForVersion int) {
	if d.state != StateCreated {
		panic("qdev: migration alias set after init")
	}

	d.aliasID = aliasID
	d.aliasRequiredForVersion = requiredForVersion
}

// Free unlinks the device from its bus and tears it down: child buses
// first, then migration state, the exit callback, the retained option
// bag, and finally each property's free hook.
func (d *Device) Free() {
	m := d.Machine()

	if d.state == StateInitialised {
		for len(d.children) > 0 {
			d.children[0].Free()
		}

		if d.Kind.VMState != nil {
			m.migration.Unregister(d, d.Kind.VMState)
		}

		if d.Kind.Exit != nil {
			d.Kind.Exit(d)
		}

		if d.opts != nil {
			d.opts.Release()
			d.opts = nil
		}
	}

	d.parent.removeChild(d)
	d.parent = nil

	base := d.base()
	for _, p := range d.Kind.Props {
		if f, ok := p.Kind.(prop.Freer); ok {
			f.Free(base, p.Offset)
		}
	}
}

// Unplug begins device removal. It fails unless the parent bus allows
// hotplugging; otherwise it delegates to the kind's unplug callback,
// which frees the device now or later.
func (d *Device) Unplug() error {
	if !d.parent.AllowHotplug {
		return fmt.Errorf("%w: %q", ErrBusNoHotplug, d.parent.Name)
	}

	if d.Kind.Unplug == nil {
		panic(fmt.Sprintf("qdev: kind %q is hotpluggable but has no unplug callback", d.Kind.Name))
	}

	d.Machine().hotRemoved = true
	return d.Kind.Unplug(d)
}

// SimpleUnplug is an unplug callback for kinds whose removal needs no
// extra teardown: it just frees the device.
func SimpleUnplug(d *Device) error {
	d.Free()
	return nil
}

// Walk visits the device and its subtree in pre-order. A non-nil
// error from either callback halts the walk.
func (d *Device) Walk(devFn func(*Device) error, busFn func(*Bus) error) error {
	if devFn != nil {
		if err := devFn(d); err != nil {
			return err
		}
	}

	for _, b := range d.children {
		if err := b.Walk(devFn, busFn); err != nil {
			return err
		}
	}

	return nil
}

// Reset resets the device subtree in pre-order.
func (d *Device) Reset() error {
	return d.Walk(resetDevice, resetBus)
}

// SetProperty parses value into the named property, searching the
// kind's schema and then the host bus kind's.
func (d *Device) SetProperty(name, value string) error {
	p := prop.Find(d.Kind.Props, name)
	if p == nil {
		p = prop.Find(d.parent.Kind.Props, name)
	}

	if p == nil {
		return fmt.Errorf("%w: device %q has no property %q", ErrPropertyParse, d.Kind.Name, name)
	}

	if err := p.Kind.Parse(d.base(), p.Offset, value); err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrPropertyParse, name, value, err)
	}

	return nil
}

// PropertyString renders one of the device's property slots. ok is
// false for legacy kinds that cannot print.
func (d *Device) PropertyString(p prop.Property) (value string, ok bool) {
	return p.Kind.Print(d.base(), p.Offset)
}

// DumpState walks the device's state descriptor and returns the
// structured field tree. It fails with ErrDeviceNoState when the kind
// has no descriptor.
func (d *Device) DumpState(full bool) ([]vmstate.DumpField, error) {
	if d.Kind.VMState == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNoState, d.Kind.Name)
	}

	return d.Kind.VMState.Dump(d.base(), full), nil
}

// InstanceNo returns the device's rank among its bus's children of
// the same kind, in list order.
func (d *Device) InstanceNo() int {
	n := 0
	for _, sib := range d.parent.children {
		if sib.Kind != d.Kind {
			continue
		}

		if sib == d {
			break
		}

		n++
	}

	return n
}

// FirmwarePath returns the device's firmware path: one segment per
// device from the top of the tree down to and including this one,
// named by each hosting bus kind's FirmwarePath callback or the
// device kind name.
func (d *Device) FirmwarePath() string {
	var segs []string

	var walk func(d *Device)
	walk = func(d *Device) {
		if d == nil || d.parent == nil {
			return
		}

		walk(d.parent.parent)

		if fp := d.parent.Kind.FirmwarePath; fp != nil {
			segs = append(segs, fp(d))
		} else {
			segs = append(segs, d.Kind.Name)
		}
	}

	walk(d)
	return "/" + strings.Join(segs, "/")
}

func (d *Device) removeBus(b *Bus) {
	if i := slices.Index(d.children, b); i >= 0 {
		d.children = slices.Delete(d.children, i, i+1)
	}
}

// busNames lists the device's child-bus names for monitor listings.
func (d *Device) busNames() []string {
	names := make([]string, 0, len(d.children))
	for _, b := range d.children {
		names = append(names, b.Name)
	}

	return names
}

// label names the device in monitor listings: the id when set, the
// kind name otherwise.
func (d *Device) label() string {
	if d.ID != "" {
		return d.ID
	}

	return d.Kind.Name
}
