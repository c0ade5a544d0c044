package motor

import (
	"testing"
	"time"

	"github.com/phi-robotics/motorlink/pkg/adapter"
	"github.com/phi-robotics/motorlink/pkg/ecat"
)

// repeatStatus builds a script of n copies of v followed by the staircase
// tail to operation enabled.
func repeatStatus(v uint16, n int, tail ...uint16) []uint16 {
	out := make([]uint16, 0, n+len(tail))
	for i := 0; i < n; i++ {
		out = append(out, v)
	}
	return append(out, tail...)
}

func TestBarrierWaitsForAllAxes(t *testing.T) {
	c, _, slaves, clock := newTestRig(t, 3)

	// Three axes reach operation enabled at different ticks.
	slaves[0].ScriptStatus(repeatStatus(0x40, 1, 0x21, 0x23, 0x27))
	slaves[1].ScriptStatus(repeatStatus(0x40, 3, 0x21, 0x23, 0x27))
	slaves[2].ScriptStatus(repeatStatus(0x40, 5, 0x21, 0x23, 0x27))
	c.SetCommand(true, +1, 1000)

	// The last axis reports 0x27 on tick 8; nothing may arm before that.
	for i := 0; i < 7; i++ {
		c.tickOnce(clock)
		if c.barrierArmed || c.motionStarted {
			t.Fatalf("tick %d: armed=%v started=%v before all axes enabled",
				i+1, c.barrierArmed, c.motionStarted)
		}
	}
	c.tickOnce(clock) // tick 8: all enabled, barrier arms
	if !c.barrierArmed {
		t.Fatal("barrier not armed once every axis reported enabled")
	}
	armNs := c.barrierStart

	// 4ms cycle, 1s delay: motion starts at the first tick whose time is
	// at least armNs + 1s, and no tick before it moves a target.
	ticks := 0
	for !c.motionStarted {
		for i, s := range slaves {
			if got, want := c.targetWritten(i), s.Actual(); got != want {
				t.Fatalf("axis %d target = %d before motion start, want hold at %d", i, got, want)
			}
		}
		c.tickOnce(clock)
		ticks++
		if ticks > 300 {
			t.Fatal("barrier never fired")
		}
	}
	fireNs := c.snap.TimeNs
	if fireNs-armNs < uint64(time.Second) {
		t.Errorf("fired %d ns after arming, want >= 1s", fireNs-armNs)
	}
	// One cycle earlier was still short of the delay.
	if prev := fireNs - testCycleUS*1000; prev-armNs >= uint64(time.Second) {
		t.Errorf("barrier fired one tick late: previous tick at %d already satisfied the delay", prev)
	}
}

func TestBarrierRequiresRun(t *testing.T) {
	c, _, slaves, clock := newTestRig(t, 1)
	slaves[0].ScriptStatus([]uint16{0x27})

	for i := 0; i < 10; i++ {
		c.tickOnce(clock)
	}
	if c.barrierArmed || c.motionStarted {
		t.Error("barrier engaged without a run command")
	}

	c.SetCommand(true, +1, 10)
	c.tickOnce(clock)
	if !c.barrierArmed {
		t.Error("barrier did not arm once run was commanded")
	}
}

func TestBarrierDoesNotRearm(t *testing.T) {
	c, _, slaves, clock := newTestRig(t, 1)
	slaves[0].ScriptStatus([]uint16{0x27})
	c.SetCommand(true, +1, 10)

	c.tickOnce(clock)
	clock.ns += uint64(DefaultBarrierDelay)
	c.tickOnce(clock)
	if !c.motionStarted {
		t.Fatal("barrier did not fire")
	}

	// Stop and run again: motion stays started, the barrier stays down.
	c.SetCommand(false, 0, 10)
	c.tickOnce(clock)
	c.SetCommand(true, -1, 10)
	c.tickOnce(clock)
	if c.barrierArmed {
		t.Error("barrier re-armed after motion start")
	}
	if !c.motionStarted {
		t.Error("motion flag dropped")
	}
}

func TestBarrierSeedsTargetsOnFire(t *testing.T) {
	c, _, slaves, clock := newTestRig(t, 2)
	slaves[0].ScriptStatus([]uint16{0x27})
	slaves[1].ScriptStatus([]uint16{0x27})
	slaves[0].SetActual(1234)
	slaves[1].SetActual(-987)
	c.SetCommand(true, +1, 10)

	c.tickOnce(clock)
	clock.ns += uint64(DefaultBarrierDelay)
	c.tickOnce(clock)
	if !c.motionStarted {
		t.Fatal("barrier did not fire")
	}
	if got := c.axes[0].targetPos; got != 1234 {
		t.Errorf("axis 0 target = %d, want seeded 1234", got)
	}
	if got := c.axes[1].targetPos; got != -987 {
		t.Errorf("axis 1 target = %d, want seeded -987", got)
	}
}

func TestCustomBarrierDelay(t *testing.T) {
	m := ecat.NewSimMaster()
	slave := m.AddSlave(0, testVendor, testProduct)
	slave.ScriptStatus([]uint16{0x27})
	clock := &fakeClock{}
	c, err := New(Config{
		CycleUS:      testCycleUS,
		Master:       m,
		Fallback:     adapter.NewStandard(),
		Now:          clock.now,
		BarrierDelay: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.SetCommand(true, +1, 10)
	c.tickOnce(clock) // arms at t=0
	// 20ms at a 4ms cycle: fires on the tick whose time reaches 20ms.
	fired := -1
	for i := 0; i < 10; i++ {
		c.tickOnce(clock)
		if c.motionStarted {
			fired = i
			break
		}
	}
	if fired != 4 {
		t.Errorf("fired on post-arm tick %d, want 4 (20ms / 4ms)", fired)
	}
}
