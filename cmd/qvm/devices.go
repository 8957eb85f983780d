package main

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/s7r/qdev"
	"github.com/s7r/qdev/prop"
	"github.com/s7r/qdev/vmstate"
)

// The demo machine registers a small zoo of kinds: a blinker on the
// system bus, a hub exposing a hotpluggable HUB bus, and leds that
// live on it.

type blinkerDevice struct {
	qdev.Device
	Rate  uint32
	Ticks uint32
}

type hubDevice struct {
	qdev.Device
	Ports uint32
	bus   qdev.Bus
}

type ledDevice struct {
	qdev.Device
	Flags uint32
	Color string
}

var hubBus = &qdev.BusKind{
	Name: "HUB",

	PrintDev: func(w io.Writer, indent int, d *qdev.Device) {
		fmt.Fprintf(w, "%*sslot %d\n", indent, "", d.InstanceNo())
	},

	FirmwarePath: func(d *qdev.Device) string {
		return fmt.Sprintf("%s@%d", d.Kind.Name, d.InstanceNo())
	},
}

func registerKinds(m *qdev.Machine) {
	m.Register(&qdev.DeviceKind{
		Name: "blinker",
		Desc: "blinks at a fixed rate",
		Bus:  qdev.SystemBus,
		Size: unsafe.Sizeof(blinkerDevice{}),
		New:  func() *qdev.Device { return &new(blinkerDevice).Device },
		Props: []prop.Property{
			{Name: "rate", Kind: prop.Uint32{}, Offset: unsafe.Offsetof(blinkerDevice{}.Rate), Default: "1000"},
		},
		Init: func(d *qdev.Device) error { return nil },
		Reset: func(d *qdev.Device) error {
			(*blinkerDevice)(unsafe.Pointer(d)).Ticks = 0
			return nil
		},
		VMState: &vmstate.Description{
			Name:      "blinker",
			VersionID: 1,
			Fields: []vmstate.Field{
				{Name: "rate", Offset: unsafe.Offsetof(blinkerDevice{}.Rate), Size: 4},
				{Name: "ticks", Offset: unsafe.Offsetof(blinkerDevice{}.Ticks), Size: 4},
			},
		},
	})

	m.Register(&qdev.DeviceKind{
		Name: "hub",
		Desc: "hosts a hotpluggable HUB bus",
		Bus:  qdev.SystemBus,
		Size: unsafe.Sizeof(hubDevice{}),
		New:  func() *qdev.Device { return &new(hubDevice).Device },
		Props: []prop.Property{
			{Name: "ports", Kind: prop.Uint32{}, Offset: unsafe.Offsetof(hubDevice{}.Ports), Default: "4"},
		},
		Init: func(d *qdev.Device) error {
			h := (*hubDevice)(unsafe.Pointer(d))
			d.Machine().InitBus(&h.bus, hubBus, d, "")
			h.bus.AllowHotplug = true
			return nil
		},
	})

	m.Register(&qdev.DeviceKind{
		Name:  "led-strip",
		Alias: "led",
		Desc:  "a strip of lights",
		Bus:   hubBus,
		Size:  unsafe.Sizeof(ledDevice{}),
		New:   func() *qdev.Device { return &new(ledDevice).Device },
		Props: []prop.Property{
			{Name: "lit", Kind: prop.Bit{Mask: 1}, Offset: unsafe.Offsetof(ledDevice{}.Flags)},
			{Name: "color", Kind: prop.String{}, Offset: unsafe.Offsetof(ledDevice{}.Color), Default: "green"},
		},
		Init:   func(d *qdev.Device) error { return nil },
		Unplug: qdev.SimpleUnplug,
		VMState: &vmstate.Description{
			Name:      "led-strip",
			VersionID: 2,
			Fields: []vmstate.Field{
				{
					Name:    "flags",
					Offset:  unsafe.Offsetof(ledDevice{}.Flags),
					Size:    4,
					Flags:   vmstate.Bitfield,
					BitName: "lit",
					BitMask: 1,
				},
			},
		},
	})
}
