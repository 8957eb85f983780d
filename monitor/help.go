package monitor

import (
	"fmt"

	"github.com/s7r/qdev"
)

// help handles the two describe forms of device_add: driver=? lists
// every user-creatable kind, and a lone ? lists the referenced kind's
// properties. It reports whether the request was a help request.
func (mon *Monitor) help(opts *Opts) bool {
	driver, ok := opts.Get("driver")
	if ok && driver == "?" {
		for _, k := range mon.m.Kinds() {
			if k.NoUser {
				continue
			}

			mon.printKind(k)
		}

		return true
	}

	if _, ok := opts.Get("?"); !ok {
		return false
	}

	kind := mon.m.FindKind(nil, driver)
	if kind == nil {
		return false
	}

	for _, p := range kind.Props {
		fmt.Fprintf(mon.out, "%s.%s=%s\n", kind.Name, p.Name, p.Kind.Name())
	}

	return true
}

// KindList handles info qdm: one line per registered kind.
func (mon *Monitor) KindList() {
	for _, k := range mon.m.Kinds() {
		mon.printKind(k)
	}
}

func (mon *Monitor) printKind(k *qdev.DeviceKind) {
	fmt.Fprintf(mon.out, "name %q, bus %s", k.Name, k.Bus.Name)

	if k.Alias != "" {
		fmt.Fprintf(mon.out, ", alias %q", k.Alias)
	}

	if k.Desc != "" {
		fmt.Fprintf(mon.out, ", desc %q", k.Desc)
	}

	if k.NoUser {
		fmt.Fprint(mon.out, ", no-user")
	}

	fmt.Fprintln(mon.out)
}
