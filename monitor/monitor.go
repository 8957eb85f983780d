// Package monitor is the command surface over a qdev machine: the
// device_add/device_del/device_show commands, the info listings, and
// machine config bundles. It parses option bags, maps errors to the
// command statuses, and renders results for a human or a machine.
package monitor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/s7r/qdev"
	"golang.org/x/term"
)

// Config describes a new monitor.
type Config struct {

	// Machine is the machine the commands operate on.
	Machine *qdev.Machine

	// Out receives command output. If Out is nil, os.Stdout is used.
	Out io.Writer
}

// Monitor executes commands against one machine. It is not safe for
// concurrent use: like the machine itself, it expects the caller's
// serialising guard.
type Monitor struct {
	m   *qdev.Machine
	out io.Writer

	// Interactive enables the candidate listings and hints that only
	// make sense for a human at a terminal. New sets it by sniffing
	// Out; flip it to taste.
	Interactive bool
}

// New creates a monitor over the machine.
func New(cfg Config) *Monitor {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	mon := &Monitor{m: cfg.Machine, out: out}
	if f, ok := out.(*os.File); ok {
		mon.Interactive = term.IsTerminal(int(f.Fd()))
	}

	return mon
}

// Machine returns the machine the monitor drives.
func (mon *Monitor) Machine() *qdev.Machine {
	return mon.m
}

// HandleLine executes one command line and returns its status: 0 on
// success, -1 on failure.
func (mon *Monitor) HandleLine(line string) int {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "", "#":
		return 0

	case "device_add":
		opts, err := ParseOpts(arg)
		if err != nil {
			mon.report(err)
			return -1
		}

		return mon.DeviceAdd(opts)

	case "device_del":
		if arg == "" {
			mon.report(fmt.Errorf("%w: %q", qdev.ErrMissingParameter, "id"))
			return -1
		}

		return mon.DeviceDel(arg)

	case "device_show":
		if arg == "" {
			mon.report(fmt.Errorf("%w: %q", qdev.ErrMissingParameter, "path"))
			return -1
		}

		return mon.DeviceShow(arg)

	case "info":
		switch arg {
		case "qtree":
			mon.InfoTree()
			return 0

		case "qdm":
			mon.KindList()
			return 0
		}

		fmt.Fprintf(mon.out, "unknown info command %q\n", arg)
		return -1

	case "system_reset":
		if err := mon.m.SystemReset(); err != nil {
			mon.report(err)
			return -1
		}

		return 0

	default:
		fmt.Fprintf(mon.out, "unknown command %q\n", cmd)
		return -1
	}
}

// DeviceAdd handles device_add. On an interactive monitor, help
// requests (driver=? or a lone ?) print listings instead of
// constructing, and count as success; otherwise they go to the
// machine like any other option bag.
func (mon *Monitor) DeviceAdd(opts *Opts) int {
	if mon.Interactive && mon.help(opts) {
		opts.Release()
		return 0
	}

	if _, err := mon.m.DeviceAdd(opts); err != nil {
		mon.report(err)
		opts.Release()
		return -1
	}

	return 0
}

// DeviceDel handles device_del: it unplugs the device carrying the
// id. Removal completes whenever the kind's unplug callback frees it.
func (mon *Monitor) DeviceDel(id string) int {
	dev := mon.m.Root().FindDeviceID(id)
	if dev == nil {
		mon.report(&qdev.PathError{Err: qdev.ErrDeviceNotFound, Segment: id})
		return -1
	}

	if err := dev.Unplug(); err != nil {
		mon.report(err)
		return -1
	}

	return 0
}

// report prints an error. For interactive users it follows up with
// the candidate names a failed path segment could have matched.
func (mon *Monitor) report(err error) {
	fmt.Fprintf(mon.out, "%v\n", err)

	if !mon.Interactive {
		return
	}

	if errors.Is(err, qdev.ErrInvalidParameterValue) {
		fmt.Fprintln(mon.out, "Try with argument '?' for a list.")
		return
	}

	if errors.Is(err, qdev.ErrDeviceNoState) {
		fmt.Fprintln(mon.out, "Note: device may simply lack a state descriptor")
		return
	}

	var pe *qdev.PathError
	if !errors.As(err, &pe) || len(pe.Candidates) == 0 {
		return
	}

	what := "child buses"
	if errors.Is(pe.Err, qdev.ErrDeviceNotFound) {
		what = "devices"
	}

	fmt.Fprintf(mon.out, "%s at %q:", what, pe.Owner)

	sep := " "
	for _, c := range pe.Candidates {
		fmt.Fprintf(mon.out, "%s%q", sep, c)
		sep = ", "
	}

	fmt.Fprintln(mon.out)
}
