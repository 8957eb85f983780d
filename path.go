package qdev

import (
	"strconv"
	"strings"
)

// FindBus resolves a bus path. A bare "/" names the root bus; any
// other first segment resolves by recursive bus-name search from the
// root. Later segments alternate device, bus. A trailing device
// segment resolves to its sole child bus, or fails with
// ErrDeviceNoBus / ErrDeviceMultipleBuses.
func (m *Machine) FindBus(path string) (*Bus, error) {
	var (
		bus  *Bus
		rest = path
	)

	if strings.HasPrefix(rest, "/") {
		rest = strings.TrimLeft(rest, "/")
	}

	if rest == "" {
		if path == "" {
			return nil, &PathError{Err: ErrBusNotFound, Segment: path}
		}

		return m.Root(), nil
	}

	elem, tail := cutSegment(rest)
	bus = m.Root().findRecursive(elem, nil)
	if bus == nil {
		return nil, &PathError{Err: ErrBusNotFound, Segment: elem}
	}

	rest = tail

	for {
		rest = strings.TrimLeft(rest, "/")
		if rest == "" {
			return bus, nil
		}

		var elem string
		elem, rest = cutSegment(rest)

		dev := bus.findDevice(elem)
		if dev == nil {
			return nil, &PathError{
				Err:        ErrDeviceNotFound,
				Segment:    elem,
				Owner:      bus.Name,
				Candidates: bus.deviceNames(),
			}
		}

		rest = strings.TrimLeft(rest, "/")
		if rest == "" {
			// The last element is a device. If it has exactly one
			// child bus, accept it nevertheless.
			switch len(dev.children) {
			case 0:
				return nil, &PathError{Err: ErrDeviceNoBus, Segment: elem}

			case 1:
				return dev.children[0], nil

			default:
				return nil, &PathError{
					Err:        ErrDeviceMultipleBuses,
					Segment:    elem,
					Owner:      dev.label(),
					Candidates: dev.busNames(),
				}
			}
		}

		elem, rest = cutSegment(rest)

		child := dev.ChildBus(elem)
		if child == nil {
			return nil, &PathError{
				Err:        ErrBusNotFound,
				Segment:    elem,
				Owner:      dev.label(),
				Candidates: dev.busNames(),
			}
		}

		bus = child
	}
}

// FindDevice resolves a device reference. An absolute path splits
// into a bus path and a trailing device segment; anything else is a
// tree-unique id looked up by recursive search.
func (m *Machine) FindDevice(path string) (*Device, error) {
	if !strings.HasPrefix(path, "/") {
		if d := m.Root().FindDeviceID(path); d != nil {
			return d, nil
		}

		return nil, &PathError{Err: ErrDeviceNotFound, Segment: path}
	}

	i := strings.LastIndexByte(path, '/')
	busPath, devName := path[:i+1], path[i+1:]

	bus, err := m.FindBus(busPath)
	if err != nil {
		// Retry with the full path so the error names the deepest
		// unresolved segment.
		if _, err2 := m.FindBus(path); err2 != nil {
			return nil, err2
		}

		return nil, &PathError{Err: ErrDeviceNotFound, Segment: devName}
	}

	dev := bus.findDevice(devName)
	if dev == nil {
		return nil, &PathError{
			Err:        ErrDeviceNotFound,
			Segment:    devName,
			Owner:      bus.Name,
			Candidates: bus.deviceNames(),
		}
	}

	return dev, nil
}

// findDevice resolves one device segment among the bus's children:
// the n-th child whose kind name matches wins, retrying with kind
// aliases. The instance qualifier defaults to 0.
func (b *Bus) findDevice(elem string) *Device {
	name, instance := splitInstance(elem)

	n := 0
	for _, d := range b.children {
		if d.Kind.Name == name {
			if n == instance {
				return d
			}

			n++
		}
	}

	n = 0
	for _, d := range b.children {
		if d.Kind.Alias != "" && d.Kind.Alias == name {
			if n == instance {
				return d
			}

			n++
		}
	}

	return nil
}

// splitInstance splits a device segment's optional decimal `.N`
// instance qualifier.
func splitInstance(elem string) (string, int) {
	if name, num, ok := strings.Cut(elem, "."); ok {
		if v, err := strconv.Atoi(num); err == nil && v >= 0 {
			return name, v
		}
	}

	return elem, 0
}

// cutSegment splits the leading path segment from the rest.
func cutSegment(path string) (elem, rest string) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i], path[i:]
	}

	return path, ""
}
