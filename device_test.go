package qdev_test

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/s7r/qdev"
	"github.com/s7r/qdev/prop"
)

func TestCreateAppliesDefaults(t *testing.T) {
	m := quietMachine()
	m.Register(blinkerKind())

	d := m.MustNewDevice(nil, "blinker")

	if d.State() != qdev.StateCreated {
		t.Errorf("state = %v, want Created", d.State())
	}

	if d.Parent() != m.Root() {
		t.Error("device isn't on the root bus")
	}

	b := (*blinkerDevice)(unsafe.Pointer(d))
	if b.Rate != 1000 {
		t.Errorf("rate = %d, want the default 1000", b.Rate)
	}
}

func TestBusKindDefaultsAndGlobals(t *testing.T) {
	m := quietMachine()

	hubBus := hubBusKind()
	hubBus.Props = []prop.Property{
		{Name: "lit", Kind: prop.Bit{Mask: 2}, Offset: unsafe.Offsetof(ledDevice{}.Lit), Default: "on"},
	}

	m.Register(hubKind(hubBus))
	m.Register(ledKind(hubBus))
	m.RegisterGlobal(qdev.GlobalProperty{Driver: "led-strip", Property: "lit", Value: "on"})

	m.MustNewDevice(nil, "hub").MustInit()

	d, err := m.DeviceAdd(bag("driver=led-strip"))
	if err != nil {
		t.Fatal(err)
	}

	led := (*ledDevice)(unsafe.Pointer(d))
	if led.Lit != 3 {
		t.Errorf("lit = %#x, want bus default | global = 0x3", led.Lit)
	}
}

func TestInitTransitionsAndRegistersState(t *testing.T) {
	m := quietMachine()
	m.Register(blinkerKind())

	d := m.MustNewDevice(nil, "blinker")

	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	if d.State() != qdev.StateInitialised {
		t.Errorf("state = %v, want Initialised", d.State())
	}

	if n := m.Migration().Count(d); n != 1 {
		t.Errorf("migration records = %d, want 1", n)
	}
}

func TestInitFailureFreesDevice(t *testing.T) {
	m := quietMachine()

	boom := errors.New("boom")
	k := blinkerKind()
	k.Init = func(*qdev.Device) error { return boom }
	m.Register(k)

	d := m.MustNewDevice(nil, "blinker")

	if err := d.Init(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if n := len(m.Root().Devices()); n != 0 {
		t.Errorf("root still has %d devices", n)
	}

	if m.Migration().Len() != 0 {
		t.Error("failed device left migration state behind")
	}
}

// countedString counts Free invocations on a string slot.
type countedString struct {
	frees *int
}

func (countedString) Name() string { return "string" }

func (countedString) Parse(base unsafe.Pointer, off uintptr, text string) error {
	return prop.String{}.Parse(base, off, text)
}

func (countedString) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return prop.String{}.Print(base, off)
}

func (c countedString) Free(base unsafe.Pointer, off uintptr) {
	*c.frees++
	prop.String{}.Free(base, off)
}

func TestFreeTeardownOrder(t *testing.T) {
	m := quietMachine()

	frees, exits := 0, 0

	k := blinkerKind()
	k.Props = append(k.Props, prop.Property{
		Name:   "tag",
		Kind:   countedString{frees: &frees},
		Offset: unsafe.Offsetof(blinkerDevice{}.Label),
	})
	k.Exit = func(*qdev.Device) error {
		exits++
		return nil
	}
	m.Register(k)

	b := bag("driver=blinker", "tag=x")
	d, err := m.DeviceAdd(b)
	if err != nil {
		t.Fatal(err)
	}

	d.Free()

	if n := len(m.Root().Devices()); n != 0 {
		t.Errorf("root still has %d devices", n)
	}

	if exits != 1 {
		t.Errorf("exit ran %d times, want 1", exits)
	}

	if frees != 1 {
		t.Errorf("property free ran %d times, want 1", frees)
	}

	if b.released != 1 {
		t.Errorf("option bag released %d times, want 1", b.released)
	}

	if m.Migration().Len() != 0 {
		t.Error("migration state survived free")
	}
}

func TestFreeRecursesChildBuses(t *testing.T) {
	m := quietMachine()

	hubBus := hubBusKind()
	m.Register(hubKind(hubBus))
	m.Register(ledKind(hubBus))

	hub := m.MustNewDevice(nil, "hub")
	hub.MustInit()

	led := m.MustNewDevice(hub.ChildBuses()[0], "led")
	led.MustInit()

	hub.Free()

	if n := len(m.Root().Devices()); n != 0 {
		t.Errorf("root still has %d devices", n)
	}

	if m.Migration().Len() != 0 {
		t.Error("hosted device's migration state survived")
	}
}

func TestUnplugRequiresHotplugBus(t *testing.T) {
	m := quietMachine()

	k := blinkerKind()
	k.Unplug = qdev.SimpleUnplug
	m.Register(k)

	d := m.MustNewDevice(nil, "blinker")
	d.MustInit()

	if err := d.Unplug(); !errors.Is(err, qdev.ErrBusNoHotplug) {
		t.Errorf("err = %v, want ErrBusNoHotplug", err)
	}

	if m.Modified() {
		t.Error("rejected unplug latched machine-modified")
	}
}

func TestResetWalkIsPreOrder(t *testing.T) {
	m := quietMachine()

	var order []string

	hubBus := hubBusKind()
	hubBus.Reset = func(b *qdev.Bus) error {
		order = append(order, "bus:"+b.Name)
		return nil
	}

	hk := hubKind(hubBus)
	hk.Reset = func(*qdev.Device) error {
		order = append(order, "hub")
		return nil
	}

	lk := ledKind(hubBus)
	lk.Reset = func(d *qdev.Device) error {
		order = append(order, "led:"+d.ID)
		return nil
	}

	m.Register(hk)
	m.Register(lk)

	hub := m.MustNewDevice(nil, "hub")
	hub.MustInit()

	for _, id := range []string{"a", "b"} {
		led := m.MustNewDevice(hub.ChildBuses()[0], "led")
		led.ID = id
		led.MustInit()
	}

	if err := m.Root().ResetAll(); err != nil {
		t.Fatal(err)
	}

	// children insert at the head, so the later led walks first
	want := []string{"hub", "bus:hub.0", "led:b", "led:a"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("reset order mismatch (-want +got):\n%s", diff)
	}
}

func TestResetHaltsOnError(t *testing.T) {
	m := quietMachine()

	boom := errors.New("boom")
	visited := 0

	k := blinkerKind()
	k.Reset = func(*qdev.Device) error {
		visited++
		return boom
	}
	m.Register(k)

	m.MustNewDevice(nil, "blinker").MustInit()
	m.MustNewDevice(nil, "blinker").MustInit()

	if err := m.Root().ResetAll(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if visited != 1 {
		t.Errorf("reset visited %d devices after error, want 1", visited)
	}
}

func TestPreOrderVisitsEveryNodeOnce(t *testing.T) {
	m := quietMachine()

	hubBus := hubBusKind()
	m.Register(hubKind(hubBus))
	m.Register(ledKind(hubBus))

	hub := m.MustNewDevice(nil, "hub")
	hub.MustInit()

	led := m.MustNewDevice(hub.ChildBuses()[0], "led")
	led.MustInit()

	seen := map[*qdev.Device]int{}
	m.Root().EachDevice(func(d *qdev.Device) bool {
		seen[d]++
		return true
	})

	if len(seen) != 2 || seen[hub] != 1 || seen[led] != 1 {
		t.Errorf("walk visits = %v", seen)
	}
}

func TestInstanceNo(t *testing.T) {
	m := quietMachine()
	m.Register(blinkerKind())

	first := m.MustNewDevice(nil, "blinker")
	first.MustInit()

	second := m.MustNewDevice(nil, "blinker")
	second.MustInit()

	// head insertion: the newest device is rank 0
	if n := second.InstanceNo(); n != 0 {
		t.Errorf("second.InstanceNo() = %d, want 0", n)
	}

	if n := first.InstanceNo(); n != 1 {
		t.Errorf("first.InstanceNo() = %d, want 1", n)
	}
}

func TestFirmwarePath(t *testing.T) {
	m := quietMachine()

	hubBus := hubBusKind()
	hubBus.FirmwarePath = func(d *qdev.Device) string {
		return d.Kind.Name + "@0"
	}

	m.Register(hubKind(hubBus))
	m.Register(ledKind(hubBus))

	hub := m.MustNewDevice(nil, "hub")
	hub.MustInit()

	led := m.MustNewDevice(hub.ChildBuses()[0], "led")
	led.MustInit()

	if got := led.FirmwarePath(); got != "/hub/led-strip@0" {
		t.Errorf("firmware path = %q", got)
	}

	if got := hub.FirmwarePath(); got != "/hub" {
		t.Errorf("firmware path = %q", got)
	}
}

func TestMigrationAlias(t *testing.T) {
	m := quietMachine()
	m.Register(blinkerKind())

	d := m.MustNewDevice(nil, "blinker")
	d.SetMigrationAlias(7, 2)
	d.MustInit()

	if n := m.Migration().Count(d); n != 1 {
		t.Errorf("migration records = %d, want 1", n)
	}
}

func TestChildBusNames(t *testing.T) {
	m := quietMachine()

	hubBus := hubBusKind()
	m.Register(hubKind(hubBus))

	hub := m.MustNewDevice(nil, "hub")
	hub.MustInit()

	if b := hub.ChildBus("hub.0"); b == nil {
		t.Fatal("default bus name isn't kind.index lower-cased")
	}

	withID := m.MustNewDevice(nil, "hub")
	withID.ID = "north"
	withID.MustInit()

	if b := withID.ChildBus("north.0"); b == nil {
		t.Fatal("bus name doesn't use the parent id")
	}
}
