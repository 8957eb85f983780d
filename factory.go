package qdev

import "fmt"

// OptionBag is the set of options driving one DeviceAdd, produced by
// a monitor front end.
type OptionBag interface {

	// Get returns the value of a named option.
	Get(name string) (value string, ok bool)

	// ID returns the user-assigned device id, or "".
	ID() string

	// Each visits every option except the id, in insertion order,
	// stopping at the first error.
	Each(fn func(name, value string) error) error

	// Release drops the bag. A bag retained by a device is released
	// exactly once, when the device is freed.
	Release()
}

// DeviceAdd builds a device from an option bag: it resolves the
// driver and host bus, gates hot-plug, creates the device, applies
// the remaining options as properties, and initialises it. Any
// failure rolls the tree back to its prior state. On success the bag
// is retained by the device until it is freed.
func (m *Machine) DeviceAdd(opts OptionBag) (*Device, error) {
	driver, ok := opts.Get("driver")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingParameter, "driver")
	}

	kind := m.FindKind(nil, driver)
	if kind == nil || kind.NoUser {
		return nil, fmt.Errorf("%w: %q is not a driver name", ErrInvalidParameterValue, driver)
	}

	var bus *Bus
	if path, ok := opts.Get("bus"); ok {
		b, err := m.FindBus(path)
		if err != nil {
			return nil, err
		}

		if b.Kind != kind.Bus {
			return nil, fmt.Errorf("%w: %s does not attach to %s buses",
				ErrBadBusForDevice, driver, b.Kind.Name)
		}

		bus = b
	} else {
		bus = m.Root().findRecursive("", kind.Bus)
		if bus == nil {
			return nil, fmt.Errorf("%w: no %s bus for %s",
				ErrNoBusForDevice, kind.Bus.Name, kind.Name)
		}
	}

	if m.hotplug && !bus.AllowHotplug {
		return nil, fmt.Errorf("%w: %q", ErrBusNoHotplug, bus.Name)
	}

	if id := opts.ID(); id != "" && m.Root().FindDeviceID(id) != nil {
		return nil, fmt.Errorf("%w: id %q is already in use", ErrInvalidParameterValue, id)
	}

	dev := m.newDeviceFromKind(bus, kind)
	dev.ID = opts.ID()

	err := opts.Each(func(name, value string) error {
		// driver and bus name the kind and location, not a field
		if name == "driver" || name == "bus" {
			return nil
		}

		return dev.SetProperty(name, value)
	})

	if err != nil {
		dev.Free()
		return nil, err
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceInitFailed, driver, err)
	}

	dev.opts = opts
	return dev, nil
}
