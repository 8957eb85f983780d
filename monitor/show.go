package monitor

import (
	"fmt"

	"github.com/s7r/qdev/vmstate"
)

// DeviceDump is the structured result of device_show.
type DeviceDump struct {
	Device  string              `json:"device"`
	ID      string              `json:"id"`
	Version int                 `json:"version"`
	Fields  []vmstate.DumpField `json:"fields"`
}

// Show resolves a device (absolute path or bare id) and dumps its
// persistent state. Unless full is set, long buffers are truncated.
func (mon *Monitor) Show(path string, full bool) (*DeviceDump, error) {
	dev, err := mon.m.FindDevice(path)
	if err != nil {
		return nil, err
	}

	fields, err := dev.DumpState(full)
	if err != nil {
		return nil, err
	}

	return &DeviceDump{
		Device:  fmt.Sprintf("%s.%d", dev.Kind.Name, dev.InstanceNo()),
		ID:      dev.ID,
		Version: dev.Kind.VMState.VersionID,
		Fields:  fields,
	}, nil
}

// DeviceShow handles device_show, rendering the dump for a human.
func (mon *Monitor) DeviceShow(path string) int {
	dump, err := mon.Show(path, false)
	if err != nil {
		mon.report(err)
		return -1
	}

	mon.printDump(dump)
	return 0
}

const nameColumnWidth = 23

func (mon *Monitor) printDump(d *DeviceDump) {
	fmt.Fprintf(mon.out, "dev: %s, id %q, version %d\n", d.Device, d.ID, d.Version)

	for _, f := range d.Fields {
		mon.printField(f, 2)
	}
}

func (mon *Monitor) printField(f vmstate.DumpField, indent int) {
	elemNo := 0
	for _, e := range f.Elems {
		if sub, ok := e.([]any); ok {
			n, _ := fmt.Fprintf(mon.out, "%*s%s", indent, "", f.Name)

			pos := n
			if f.Start != "" {
				n, _ = fmt.Fprintf(mon.out, "[%s+%02x]", f.Start, elemNo)
			} else {
				n, _ = fmt.Fprintf(mon.out, "[%02x]", elemNo)
			}

			pos += n
			for _, se := range sub {
				mon.printElem(se, f.Size, pos, indent+2)
				pos = -1
			}
		} else {
			pos := indent + len(f.Name)
			if elemNo == 0 {
				fmt.Fprintf(mon.out, "%*s%s", indent, "", f.Name)
			} else {
				pos = -1
			}

			mon.printElem(e, f.Size, pos, indent)
		}

		elemNo++
	}
}

func (mon *Monitor) printElem(e any, size int64, columnPos, indent int) {
	if sub, ok := e.(vmstate.DumpField); ok {
		if columnPos >= 0 {
			fmt.Fprintln(mon.out, ".")
		}

		mon.printField(sub, indent+2)
		return
	}

	fmt.Fprint(mon.out, ":")
	columnPos++
	if columnPos >= 0 && columnPos < nameColumnWidth {
		fmt.Fprintf(mon.out, "%*s", nameColumnWidth-columnPos, "")
	}

	switch v := e.(type) {
	case []byte:
		for n := 0; n < len(v); {
			fmt.Fprintf(mon.out, " %02x", v[n])
			n++

			if int64(n) < size {
				if n%16 == 0 {
					fmt.Fprintf(mon.out, "\n%*s", nameColumnWidth, "")
				} else if n%8 == 0 {
					fmt.Fprint(mon.out, " -")
				}
			}
		}

		if int64(len(v)) < size {
			fmt.Fprint(mon.out, " ...")
		}

		fmt.Fprintln(mon.out)

	case uint64:
		fmt.Fprintf(mon.out, "%0*x\n", int(size)*2, v)

	default:
		fmt.Fprintf(mon.out, " %v\n", v)
	}
}
