package qdev_test

import (
	"testing"
	"unsafe"

	"github.com/s7r/qdev"
)

func TestRegisterAndFind(t *testing.T) {
	m := quietMachine()

	hubBus := hubBusKind()
	blinker := blinkerKind()
	led := ledKind(hubBus)

	m.Register(blinker)
	m.Register(led)

	if k := m.FindKind(nil, "blinker"); k != blinker {
		t.Errorf("FindKind(blinker) = %v", k)
	}

	if k := m.FindKind(nil, "led"); k != led {
		t.Errorf("FindKind by alias = %v", k)
	}

	if k := m.FindKind(qdev.SystemBus, "led-strip"); k != nil {
		t.Errorf("bus-filtered FindKind = %v, want nil", k)
	}

	if k := m.FindKind(hubBus, "led-strip"); k != led {
		t.Errorf("bus-filtered FindKind = %v", k)
	}

	if k := m.FindKind(nil, "nope"); k != nil {
		t.Errorf("FindKind(nope) = %v, want nil", k)
	}
}

func TestRegisterSmallInstancePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("no panic for undersized instance")
		}
	}()

	m := quietMachine()
	m.Register(&qdev.DeviceKind{
		Name: "tiny",
		Bus:  qdev.SystemBus,
		Size: unsafe.Sizeof(qdev.Device{}) - 1,
		New:  func() *qdev.Device { return new(qdev.Device) },
	})
}

func TestRegisterTwicePanics(t *testing.T) {
	m := quietMachine()
	k := blinkerKind()
	m.Register(k)

	defer func() {
		if recover() == nil {
			t.Error("no panic for double registration")
		}
	}()

	m.Register(k)
}

func TestRootIsLazy(t *testing.T) {
	m := quietMachine()

	if m.HasRoot() {
		t.Fatal("root exists before first access")
	}

	root := m.Root()

	if !m.HasRoot() {
		t.Fatal("root still missing after access")
	}

	if root.Name != "main-system-bus" {
		t.Errorf("root name = %q", root.Name)
	}

	if root.Kind != qdev.SystemBus {
		t.Errorf("root kind = %v", root.Kind)
	}

	if root.Parent() != nil {
		t.Error("root has a parent")
	}

	if m.Root() != root {
		t.Error("root is not stable")
	}
}

func TestRootIsNeverFreed(t *testing.T) {
	m := quietMachine()
	root := m.Root()

	defer func() {
		if recover() == nil {
			t.Error("no panic freeing the root bus")
		}
	}()

	root.Free()
}

func TestRootHasNoResetHandler(t *testing.T) {
	m := quietMachine()
	m.Root()

	if n := m.Resets().Len(); n != 0 {
		t.Errorf("reset handlers = %d, want 0", n)
	}
}

func TestStandaloneBusRegistersReset(t *testing.T) {
	m := quietMachine()
	m.Root()

	hubBus := hubBusKind()

	resets := 0
	hubBus.Reset = func(*qdev.Bus) error {
		resets++
		return nil
	}

	b := m.NewBus(hubBus, nil, "side")

	if n := m.Resets().Len(); n != 1 {
		t.Fatalf("reset handlers = %d, want 1", n)
	}

	if err := m.SystemReset(); err != nil {
		t.Fatal(err)
	}

	if resets != 1 {
		t.Errorf("bus reset ran %d times, want 1", resets)
	}

	b.Free()

	if n := m.Resets().Len(); n != 0 {
		t.Errorf("reset handlers = %d after free, want 0", n)
	}
}

func TestMachineModifiedLatch(t *testing.T) {
	m := quietMachine()

	hubBus := hubBusKind()
	m.Register(hubKind(hubBus))
	m.Register(ledKind(hubBus))

	hub := m.MustNewDevice(nil, "hub")
	hub.MustInit()

	if m.Modified() {
		t.Fatal("machine modified before creation done")
	}

	m.CreationDone()

	if !m.CreationIsDone() {
		t.Fatal("creation not done")
	}

	led, err := m.DeviceAdd(bag("driver=led-strip", "id=led0"))
	if err != nil {
		t.Fatal(err)
	}

	if !led.Hotplugged {
		t.Error("hot-added device isn't marked hotplugged")
	}

	if !m.Modified() {
		t.Error("hot-add didn't latch machine-modified")
	}
}
