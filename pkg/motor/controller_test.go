package motor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phi-robotics/motorlink/pkg/adapter"
	"github.com/phi-robotics/motorlink/pkg/ecat"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

const (
	testVendor  = 0x0000AAAA
	testProduct = 0x0000BBBB
	testCycleUS = 4000
)

// fakeClock is a hand-advanced monotonic source.
type fakeClock struct {
	ns uint64
}

func (f *fakeClock) now() uint64 { return f.ns }

func (f *fakeClock) advanceCycle() { f.ns += testCycleUS * 1000 }

// newTestRig builds a sim bus with n standard-profile drives and a
// controller on top of it.
func newTestRig(t *testing.T, n int) (*Controller, *ecat.SimMaster, []*ecat.SimSlave, *fakeClock) {
	t.Helper()
	m := ecat.NewSimMaster()
	slaves := make([]*ecat.SimSlave, n)
	for i := 0; i < n; i++ {
		slaves[i] = m.AddSlave(uint16(i), testVendor, testProduct)
	}
	clock := &fakeClock{}
	c, err := New(Config{
		CycleUS:  testCycleUS,
		Master:   m,
		Fallback: adapter.NewStandard(),
		Now:      clock.now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, m, slaves, clock
}

func (c *Controller) tickOnce(clock *fakeClock) {
	c.Tick()
	clock.advanceCycle()
}

func TestNewParamErrors(t *testing.T) {
	if _, err := New(Config{CycleUS: 1000}); !errors.Is(err, ErrParam) {
		t.Errorf("nil master: err = %v, want ErrParam", err)
	}
	if _, err := New(Config{Master: ecat.NewSimMaster()}); !errors.Is(err, ErrParam) {
		t.Errorf("zero cycle: err = %v, want ErrParam", err)
	}
}

func TestNewEmptyBusIsConfigError(t *testing.T) {
	if _, err := New(Config{CycleUS: 1000, Master: ecat.NewSimMaster()}); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestNewUnknownIdentityNoFallback(t *testing.T) {
	m := ecat.NewSimMaster()
	m.AddSlave(0, 0xDEAD, 0xBEEF)
	if _, err := New(Config{CycleUS: 1000, Master: m}); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestNewMissingEniIsIOError(t *testing.T) {
	m := ecat.NewSimMaster()
	m.AddSlave(0, testVendor, testProduct)
	_, err := New(Config{CycleUS: 1000, Master: m, ENIPath: "/does/not/exist.xml"})
	if !errors.Is(err, ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestNewActivationFailure(t *testing.T) {
	m := ecat.NewSimMaster()
	m.AddSlave(0, testVendor, testProduct)
	m.FailActivate = true
	_, err := New(Config{CycleUS: 1000, Master: m, Fallback: adapter.NewStandard()})
	if !errors.Is(err, ErrInit) {
		t.Errorf("err = %v, want ErrInit", err)
	}
}

func TestBootstrapFromEniFile(t *testing.T) {
	content := "=== Master 0, Slave 0 ===\n" +
		"Vendor Id: 0x0000AAAA\n" +
		"Product code: 0x0000BBBB\n" +
		"Distributed clocks: yes\n" +
		"=== Master 0, Slave 1 ===\n" +
		"Vendor Id: 0x0000AAAA\n" +
		"Product code: 0x0000BBBB\n" +
		"Distributed clocks: yes\n"
	path := filepath.Join(t.TempDir(), "bus.eni")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m := ecat.NewSimMaster()
	m.AddSlave(0, testVendor, testProduct)
	m.AddSlave(1, testVendor, testProduct)
	c, err := New(Config{CycleUS: testCycleUS, Master: m, ENIPath: path, Fallback: adapter.NewStandard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.Count() != 2 {
		t.Errorf("Count = %d, want 2", c.Count())
	}
	if !c.Running() {
		t.Error("Running = false after bootstrap")
	}
}

func TestBootstrapWritesInitParams(t *testing.T) {
	_, _, slaves, _ := newTestRig(t, 1)
	s := slaves[0]

	if v, ok := s.SdoValue(pdo.ObjInterpPeriod, 2); !ok || v != 0xFD {
		t.Errorf("0x60C2:2 = 0x%X (%v), want 0xFD", v, ok)
	}
	if v, ok := s.SdoValue(pdo.ObjInterpPeriod, 1); !ok || v != 4 {
		t.Errorf("0x60C2:1 = %d (%v), want 4 ms", v, ok)
	}
	if v, ok := s.SdoValue(pdo.ObjProfileVelocity, 0); !ok || v != 100000 {
		t.Errorf("0x6081 = %d, want 100000", v)
	}
	if v, ok := s.SdoValue(pdo.ObjProfileAccel, 0); !ok || v != 50000 {
		t.Errorf("0x6083 = %d, want 50000", v)
	}
	if v, ok := s.SdoValue(pdo.ObjProfileDecel, 0); !ok || v != 50000 {
		t.Errorf("0x6084 = %d, want 50000", v)
	}
}

func TestBootstrapProgramsDC(t *testing.T) {
	c, m, slaves, _ := newTestRig(t, 2)
	_ = c
	if m.ReferenceClock() == nil {
		t.Error("no reference clock selected")
	}
	for i, s := range slaves {
		assign, period, ok := s.DCPeriod()
		if !ok {
			t.Errorf("slave %d: DC not configured", i)
			continue
		}
		if assign != 0x0300 {
			t.Errorf("slave %d: assign-activate = 0x%04X", i, assign)
		}
		if period != testCycleUS*1000 {
			t.Errorf("slave %d: sync0 period = %d, want %d", i, period, testCycleUS*1000)
		}
	}
}

func TestDuplicatePositionRejected(t *testing.T) {
	content := "=== Master 0, Slave 3 ===\nVendor Id: 0xAAAA\nProduct code: 0xBBBB\n" +
		"=== Master 0, Slave 3 ===\nVendor Id: 0xAAAA\nProduct code: 0xBBBB\n"
	path := filepath.Join(t.TempDir(), "dup.eni")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m := ecat.NewSimMaster()
	m.AddSlave(3, testVendor, testProduct)
	_, err := New(Config{CycleUS: 1000, Master: m, ENIPath: path, Fallback: adapter.NewStandard()})
	if !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestSurfaceSentinelsOnBadIndex(t *testing.T) {
	c, _, _, _ := newTestRig(t, 1)

	if got := c.Status(5); got != 0 {
		t.Errorf("Status(5) = %d", got)
	}
	if got := c.ActualPosition(-1); got != 0 {
		t.Errorf("ActualPosition(-1) = %d", got)
	}
	if got := c.AdapterName(7); got != "" {
		t.Errorf("AdapterName(7) = %q", got)
	}
	if got := c.MotorInfo(7); got != "" {
		t.Errorf("MotorInfo(7) = %q", got)
	}
	// In range: identity formatting matches the diagnostic convention.
	if got := c.MotorInfo(0); got != "VID: 0x0000AAAA, PID: 0x0000BBBB" {
		t.Errorf("MotorInfo(0) = %q", got)
	}
	if got := c.AdapterName(0); got != "Standard" {
		t.Errorf("AdapterName(0) = %q", got)
	}
}

func TestSetCommandClamps(t *testing.T) {
	c, _, _, _ := newTestRig(t, 1)

	c.SetCommand(true, +1, 5000000)
	if got := c.CommandState(); got.Step != StepMax {
		t.Errorf("step = %d, want clamp to %d", got.Step, StepMax)
	}
	c.SetCommand(true, 9, 0)
	got := c.CommandState()
	if got.Direction != 0 {
		t.Errorf("direction = %d, want 0 for invalid input", got.Direction)
	}
	if got.Step != StepMin {
		t.Errorf("step = %d, want clamp to %d", got.Step, StepMin)
	}
}

func TestCloseReleases(t *testing.T) {
	c, _, _, clock := newTestRig(t, 1)
	c.Close()
	if c.Running() {
		t.Error("Running after Close")
	}
	if c.Count() != 0 {
		t.Error("axes survive Close")
	}
	// Ticking after Close is a no-op, not a panic.
	c.tickOnce(clock)
}

func TestRequestStop(t *testing.T) {
	c, _, _, _ := newTestRig(t, 1)
	c.RequestStop()
	if c.Running() {
		t.Error("Running after RequestStop")
	}
	// The master is still held; Close does the release.
	c.Close()
}
