package qdev_test

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unsafe"

	"github.com/s7r/qdev"
	"github.com/s7r/qdev/prop"
	"github.com/s7r/qdev/vmstate"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blinkerDevice is a simple system-bus device used across the tests.
type blinkerDevice struct {
	qdev.Device
	Rate  uint32
	Ticks uint32
	Label string
}

func blinkerKind() *qdev.DeviceKind {
	return &qdev.DeviceKind{
		Name: "blinker",
		Bus:  qdev.SystemBus,
		Size: unsafe.Sizeof(blinkerDevice{}),
		New:  func() *qdev.Device { return &new(blinkerDevice).Device },
		Props: []prop.Property{
			{Name: "rate", Kind: prop.Uint32{}, Offset: unsafe.Offsetof(blinkerDevice{}.Rate), Default: "1000"},
			{Name: "label", Kind: prop.String{}, Offset: unsafe.Offsetof(blinkerDevice{}.Label)},
		},
		Init: func(d *qdev.Device) error { return nil },
		VMState: &vmstate.Description{
			Name:      "blinker",
			VersionID: 3,
			Fields: []vmstate.Field{
				{Name: "ticks", Offset: unsafe.Offsetof(blinkerDevice{}.Ticks), Size: 4},
			},
		},
	}
}

// hubDevice hosts a child bus of kind HUB, embedded in its instance.
type hubDevice struct {
	qdev.Device
	Ports uint32
	bus   qdev.Bus
}

func hubBusKind() *qdev.BusKind {
	return &qdev.BusKind{Name: "HUB"}
}

func hubKind(bus *qdev.BusKind) *qdev.DeviceKind {
	return &qdev.DeviceKind{
		Name: "hub",
		Bus:  qdev.SystemBus,
		Size: unsafe.Sizeof(hubDevice{}),
		New:  func() *qdev.Device { return &new(hubDevice).Device },
		Props: []prop.Property{
			{Name: "ports", Kind: prop.Uint32{}, Offset: unsafe.Offsetof(hubDevice{}.Ports), Default: "4"},
		},
		Init: func(d *qdev.Device) error {
			h := (*hubDevice)(unsafe.Pointer(d))
			d.Machine().InitBus(&h.bus, bus, d, "")
			h.bus.AllowHotplug = true
			return nil
		},
	}
}

// ledDevice lives on a HUB bus and unplugs by just going away.
type ledDevice struct {
	qdev.Device
	Lit uint32
}

func ledKind(bus *qdev.BusKind) *qdev.DeviceKind {
	return &qdev.DeviceKind{
		Name:  "led-strip",
		Alias: "led",
		Bus:   bus,
		Size:  unsafe.Sizeof(ledDevice{}),
		New:   func() *qdev.Device { return &new(ledDevice).Device },
		Props: []prop.Property{
			{Name: "lit", Kind: prop.Bit{Mask: 1}, Offset: unsafe.Offsetof(ledDevice{}.Lit)},
		},
		Init:   func(d *qdev.Device) error { return nil },
		Unplug: qdev.SimpleUnplug,
		VMState: &vmstate.Description{
			Name:      "led-strip",
			VersionID: 1,
			Fields: []vmstate.Field{
				{Name: "lit", Offset: unsafe.Offsetof(ledDevice{}.Lit), Size: 4},
			},
		},
	}
}

// testBag is a minimal insertion-ordered OptionBag.
type testBag struct {
	id       string
	kv       [][2]string
	released int
}

func bag(pairs ...string) *testBag {
	b := &testBag{}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			panic(fmt.Sprintf("bad test option %q", p))
		}

		if name == "id" {
			b.id = value
			continue
		}

		b.kv = append(b.kv, [2]string{name, value})
	}

	return b
}

func (b *testBag) Get(name string) (string, bool) {
	for _, kv := range b.kv {
		if kv[0] == name {
			return kv[1], true
		}
	}

	return "", false
}

func (b *testBag) ID() string {
	return b.id
}

func (b *testBag) Each(fn func(name, value string) error) error {
	for _, kv := range b.kv {
		if err := fn(kv[0], kv[1]); err != nil {
			return err
		}
	}

	return nil
}

func (b *testBag) Release() {
	b.released++
}

// quietMachine builds a machine whose logger is discarded.
func quietMachine() *qdev.Machine {
	return qdev.New(qdev.Config{Logger: discardLogger()})
}
