package monitor

import (
	"fmt"

	"github.com/s7r/qdev"
	"github.com/s7r/qdev/prop"
)

// InfoTree handles info qtree: the root-rooted bus/device tree with
// per-device properties, GPIO line counts, child-bus headers, and
// bus-kind extensions.
func (mon *Monitor) InfoTree() {
	if !mon.m.HasRoot() {
		return
	}

	mon.printBus(mon.m.Root(), 0)
}

func (mon *Monitor) iprintf(indent int, format string, args ...any) {
	fmt.Fprintf(mon.out, "%*s", indent, "")
	fmt.Fprintf(mon.out, format, args...)
}

func (mon *Monitor) printBus(b *qdev.Bus, indent int) {
	mon.iprintf(indent, "bus: %s\n", b.Name)
	indent += 2
	mon.iprintf(indent, "type %s\n", b.Kind.Name)

	for _, d := range b.Devices() {
		mon.printDevice(d, indent)
	}
}

func (mon *Monitor) printDevice(d *qdev.Device, indent int) {
	mon.iprintf(indent, "dev: %s, id %q\n", d.Kind.Name, d.ID)
	indent += 2

	if n := d.NumGPIOIn(); n > 0 {
		mon.iprintf(indent, "gpio-in %d\n", n)
	}

	if n := d.NumGPIOOut(); n > 0 {
		mon.iprintf(indent, "gpio-out %d\n", n)
	}

	mon.printProps(d, d.Kind.Props, "dev", indent)
	mon.printProps(d, d.Parent().Kind.Props, "bus", indent)

	if printDev := d.Parent().Kind.PrintDev; printDev != nil {
		printDev(mon.out, indent, d)
	}

	for _, child := range d.ChildBuses() {
		mon.printBus(child, indent)
	}
}

func (mon *Monitor) printProps(d *qdev.Device, props []prop.Property, prefix string, indent int) {
	for _, p := range props {
		if value, ok := d.PropertyString(p); ok {
			mon.iprintf(indent, "%s-prop: %s = %s\n", prefix, p.Name, value)
		}
	}
}
