// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

// Package motor is the multi-axis CiA-402 servo controller core: it
// bootstraps a cyclic fieldbus master from an ENI file or bus discovery,
// advances every axis through the drive power-state machine, enforces the
// synchronized motion-start barrier, and exposes a small control surface
// for motion intent and diagnostics.
//
// The caller owns the cadence: Tick must be invoked at exactly the
// configured cycle period from a single thread. The core never sleeps,
// never blocks and never allocates inside Tick.
package motor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/adapter"
	"github.com/phi-robotics/motorlink/pkg/cia402"
	"github.com/phi-robotics/motorlink/pkg/ecat"
	"github.com/phi-robotics/motorlink/pkg/eni"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

// Snapshot is the published view of the last completed cycle.
type Snapshot struct {
	Cycle         uint64
	TimeNs        uint64
	MotionStarted bool
	BarrierArmed  bool
	Axes          []AxisDiag
}

// Controller is the live controller handle returned by New.
type Controller struct {
	log      *zap.Logger
	master   ecat.Master
	domain   ecat.Domain
	pi       []byte
	axes     []axis
	observer Observer

	cycleNs uint64
	now     func() uint64
	running atomic.Bool

	// Command state shared with external callers.
	cmdMu sync.Mutex
	cmd   Command

	// Barrier state, tick thread only.
	barrierArmed  bool
	barrierStart  uint64
	barrierDelay  uint64
	motionStarted bool

	cycleCount uint64

	// Published snapshot for diagnostics outside the tick thread.
	snapMu sync.Mutex
	snap   Snapshot
	diag   []AxisDiag // scratch handed to the observer
}

// slaveSpec is one drive to configure, from either source.
type slaveSpec struct {
	position    uint16
	vendorID    uint32
	productCode uint32
	name        string
	rxPdos      []pdo.Pdo
	txPdos      []pdo.Pdo
}

func (s *slaveSpec) hasLayout() bool {
	return len(s.rxPdos) > 0 || len(s.txPdos) > 0
}

// New bootstraps the bus and returns a running controller. On any failure
// the partially acquired master is released and the first error comes back
// wrapped in its class from the error taxonomy.
func New(cfg Config) (*Controller, error) {
	if cfg.Master == nil {
		return nil, fmt.Errorf("nil master: %w", ErrParam)
	}
	if cfg.CycleUS == 0 {
		return nil, fmt.Errorf("zero cycle period: %w", ErrParam)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = adapter.Default()
	}

	c := &Controller{
		log:          log,
		master:       cfg.Master,
		cycleNs:      uint64(cfg.CycleUS) * 1000,
		now:          cfg.Now,
		observer:     cfg.Observer,
		barrierDelay: uint64(DefaultBarrierDelay),
	}
	if cfg.BarrierDelay > 0 {
		c.barrierDelay = uint64(cfg.BarrierDelay)
	}
	if c.now == nil {
		base := time.Now()
		c.now = func() uint64 { return uint64(time.Since(base)) }
	}

	fail := func(err error) (*Controller, error) {
		c.master.Release()
		return nil, err
	}

	specs, err := c.loadSlaves(cfg.ENIPath)
	if err != nil {
		return fail(err)
	}

	domain, err := c.master.CreateDomain()
	if err != nil {
		return fail(fmt.Errorf("create domain: %v: %w", err, ErrInit))
	}
	c.domain = domain

	if err := c.configureAxes(specs, registry, cfg.Fallback); err != nil {
		return fail(err)
	}
	if err := c.registerEntries(); err != nil {
		return fail(err)
	}
	if err := c.configureDC(); err != nil {
		return fail(err)
	}

	if err := c.master.Activate(); err != nil {
		return fail(fmt.Errorf("activate master: %v: %w", err, ErrInit))
	}
	c.pi = c.domain.Data()
	if len(c.pi) == 0 {
		return fail(fmt.Errorf("empty process image: %w", ErrInit))
	}
	for i := range c.axes {
		if err := c.axes[i].resolveOffsets(); err != nil {
			return fail(err)
		}
	}

	// The barrier always starts disarmed with motion not started.
	c.barrierArmed = false
	c.barrierStart = 0
	c.motionStarted = false

	c.snap.Axes = make([]AxisDiag, len(c.axes))
	c.diag = make([]AxisDiag, len(c.axes))
	c.running.Store(true)

	log.Info("controller up",
		zap.Int("axes", len(c.axes)),
		zap.Uint32("cycle_us", cfg.CycleUS),
		zap.Duration("barrier_delay", time.Duration(c.barrierDelay)))
	return c, nil
}

// loadSlaves resolves the axis list from the ENI file or bus enumeration.
func (c *Controller) loadSlaves(eniPath string) ([]slaveSpec, error) {
	var specs []slaveSpec
	if eniPath != "" {
		slaves, err := eni.ParseFile(eniPath, c.log)
		if err != nil {
			if errors.Is(err, eni.ErrNoSlaves) {
				return nil, fmt.Errorf("%s: %v: %w", eniPath, err, ErrConfig)
			}
			return nil, fmt.Errorf("%v: %w", err, ErrIO)
		}
		for _, s := range slaves {
			specs = append(specs, slaveSpec{
				position:    s.Position,
				vendorID:    s.VendorID,
				productCode: s.ProductCode,
				name:        s.Name,
				rxPdos:      s.RxPdos,
				txPdos:      s.TxPdos,
			})
		}
		c.log.Info("eni parsed", zap.String("path", eniPath), zap.Int("slaves", len(specs)))
	} else {
		infos, err := c.master.Slaves()
		if err != nil {
			return nil, fmt.Errorf("bus scan: %v: %w", err, ErrInit)
		}
		for _, s := range infos {
			specs = append(specs, slaveSpec{
				position:    s.Position,
				vendorID:    s.VendorID,
				productCode: s.ProductCode,
				name:        s.Name,
			})
		}
		c.log.Info("bus scan", zap.Int("slaves", len(specs)))
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no slaves: %w", ErrConfig)
	}

	seen := make(map[uint16]bool, len(specs))
	for _, s := range specs {
		if seen[s.position] {
			return nil, fmt.Errorf("duplicate bus position %d: %w", s.position, ErrConfig)
		}
		seen[s.position] = true
	}
	return specs, nil
}

// configureAxes builds the axis slots: adapter lookup, slave config handle,
// init parameters and PDO programming.
func (c *Controller) configureAxes(specs []slaveSpec, registry *adapter.Registry, fallback adapter.Adapter) error {
	c.axes = make([]axis, 0, len(specs))
	for _, spec := range specs {
		ad := registry.Find(spec.vendorID, spec.productCode)
		if ad == nil {
			if fallback == nil {
				return fmt.Errorf("slave %d: no adapter for %08x:%08x: %w",
					spec.position, spec.vendorID, spec.productCode, ErrConfig)
			}
			ad = fallback
			c.log.Warn("no adapter matched, using fallback",
				zap.Uint16("position", spec.position),
				zap.Uint32("vendor_id", spec.vendorID),
				zap.Uint32("product_code", spec.productCode))
		}

		sc, err := c.master.SlaveConfig(0, spec.position, spec.vendorID, spec.productCode)
		if err != nil {
			return fmt.Errorf("slave %d config: %v: %w", spec.position, err, ErrInit)
		}

		c.writeInitParams(spec.position, sc)

		ax := axis{
			position:    spec.position,
			vendorID:    spec.vendorID,
			productCode: spec.productCode,
			name:        spec.name,
			adapter:     ad,
			sc:          sc,
			opMode:      int8(cia402.ModeCSP),
		}

		if spec.hasLayout() {
			syncs := adapter.SyncLayout(spec.rxPdos, spec.txPdos)
			if err := sc.ConfigurePdos(syncs); err != nil {
				return fmt.Errorf("slave %d pdos: %v: %w", spec.position, err, ErrConfig)
			}
			for _, p := range spec.rxPdos {
				ax.rxEntries = append(ax.rxEntries, p.Entries...)
			}
			for _, p := range spec.txPdos {
				ax.txEntries = append(ax.txEntries, p.Entries...)
			}
		} else {
			if err := ad.ConfigurePdos(sc); err != nil {
				return fmt.Errorf("slave %d pdos: %v: %w", spec.position, err, ErrConfig)
			}
			ax.rxEntries = ad.RxPdo()
			ax.txEntries = ad.TxPdo()
		}
		ax.rxOff = make([]uint32, len(ax.rxEntries))
		ax.txOff = make([]uint32, len(ax.txEntries))

		c.axes = append(c.axes, ax)
	}
	return nil
}

// writeInitParams queues the interpolation period and profile limits.
// These are best-effort: some drives reject them and run fine anyway.
func (c *Controller) writeInitParams(position uint16, sc ecat.SlaveConfig) {
	warn := func(obj string, err error) {
		if err != nil {
			c.log.Warn("init parameter rejected",
				zap.Uint16("position", position), zap.String("object", obj), zap.Error(err))
		}
	}
	interpExp := int8(interpPeriodExponent)
	warn("0x60C2:2", sc.SdoWrite8(pdo.ObjInterpPeriod, 2, uint8(interpExp)))
	warn("0x60C2:1", sc.SdoWrite8(pdo.ObjInterpPeriod, 1, uint8(c.cycleNs/1000000)))
	warn("0x6081", sc.SdoWrite32(pdo.ObjProfileVelocity, 0, profileVelocityLimit))
	warn("0x6083", sc.SdoWrite32(pdo.ObjProfileAccel, 0, profileAccelLimit))
	warn("0x6084", sc.SdoWrite32(pdo.ObjProfileDecel, 0, profileDecelLimit))
}

// registerEntries builds and registers the domain list: one entry per
// non-gap PDO entry, outputs first, in axis order.
func (c *Controller) registerEntries() error {
	var regs []ecat.EntryReg
	for i := range c.axes {
		ax := &c.axes[i]
		for j, e := range ax.rxEntries {
			if e.IsGap() {
				continue
			}
			regs = append(regs, ecat.EntryReg{
				Position:    ax.position,
				VendorID:    ax.vendorID,
				ProductCode: ax.productCode,
				Index:       e.Index,
				Sub:         e.Sub,
				Offset:      &ax.rxOff[j],
			})
		}
		for j, e := range ax.txEntries {
			if e.IsGap() {
				continue
			}
			regs = append(regs, ecat.EntryReg{
				Position:    ax.position,
				VendorID:    ax.vendorID,
				ProductCode: ax.productCode,
				Index:       e.Index,
				Sub:         e.Sub,
				Offset:      &ax.txOff[j],
			})
		}
	}
	if err := c.domain.RegisterEntryList(regs); err != nil {
		return fmt.Errorf("register pdo entries: %v: %w", err, ErrConfig)
	}
	return nil
}

// configureDC selects axis 0 as the reference clock and programs every
// slave's sync0 to the cycle period.
func (c *Controller) configureDC() error {
	if err := c.master.SelectReferenceClock(c.axes[0].sc); err != nil {
		return fmt.Errorf("reference clock: %v: %w", err, ErrInit)
	}
	for i := range c.axes {
		if err := c.axes[i].sc.ConfigureDC(dcAssignActivate, c.cycleNs, 0, 0, 0); err != nil {
			c.log.Warn("dc configuration rejected",
				zap.Uint16("position", c.axes[i].position), zap.Error(err))
		}
	}
	return nil
}

// Close releases the master and drops all per-axis state. Callers must
// stop ticking before Close.
func (c *Controller) Close() {
	c.running.Store(false)
	c.master.Release()
	c.pi = nil
	for i := range c.axes {
		c.axes[i].adapter = nil
		c.axes[i].sc = nil
	}
	c.axes = nil
}

// RequestStop flips the running flag without releasing anything; host
// loops poll Running to exit before calling Close. Safe from a signal
// handler goroutine.
func (c *Controller) RequestStop() {
	c.running.Store(false)
}

// Running reports whether the controller accepts ticks.
func (c *Controller) Running() bool { return c.running.Load() }

// Count returns the number of configured axes.
func (c *Controller) Count() int { return len(c.axes) }

// SetCommand updates the motion intent. Atomic with respect to Tick.
func (c *Controller) SetCommand(run bool, direction, step int) {
	cmd := clampCommand(run, direction, step)
	c.cmdMu.Lock()
	c.cmd = cmd
	c.cmdMu.Unlock()
}

// CommandState returns the current motion intent.
func (c *Controller) CommandState() Command {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	return c.cmd
}

// SetOpMode requests an operation mode for one axis; the mode byte goes
// out with the next cycle. reserved lands in the vendor interpolation
// sub-object when the mapping carries one.
func (c *Controller) SetOpMode(axisIdx int, mode cia402.OpMode, reserved uint8) {
	if axisIdx < 0 || axisIdx >= len(c.axes) {
		return
	}
	ax := &c.axes[axisIdx]
	ax.opMode = int8(mode)
	if ax.hasResv {
		pdo.WriteU8(c.pi, ax.offResv, reserved)
	}
}

// Reset writes a one-shot fault-reset control word to the axis
// immediately, outside the normal cycle sequencing, and clears its run
// state so the state machine brings the drive up again from scratch.
func (c *Controller) Reset(axisIdx int) {
	if axisIdx < 0 || axisIdx >= len(c.axes) || c.pi == nil {
		return
	}
	ax := &c.axes[axisIdx]
	pdo.WriteU16(c.pi, ax.offCtrl, cia402.CtrlFaultReset)
	ax.reset()
}

// Status returns the last status word read for the axis; 0 for a bad
// index. Sentinel returns keep hot-path callers branch-free.
func (c *Controller) Status(axisIdx int) uint16 {
	if axisIdx < 0 || axisIdx >= len(c.axes) {
		return 0
	}
	return c.axes[axisIdx].statusWord
}

// ActualPosition returns the last actual position read for the axis; 0
// for a bad index.
func (c *Controller) ActualPosition(axisIdx int) int32 {
	if axisIdx < 0 || axisIdx >= len(c.axes) {
		return 0
	}
	return c.axes[axisIdx].actualPos
}

// AdapterName returns the axis adapter's name; empty for a bad index.
func (c *Controller) AdapterName(axisIdx int) string {
	if axisIdx < 0 || axisIdx >= len(c.axes) {
		return ""
	}
	return c.axes[axisIdx].adapter.Name()
}

// MotorInfo returns a printable identity summary; empty for a bad index.
func (c *Controller) MotorInfo(axisIdx int) string {
	if axisIdx < 0 || axisIdx >= len(c.axes) {
		return ""
	}
	ax := &c.axes[axisIdx]
	return fmt.Sprintf("VID: 0x%08X, PID: 0x%08X", ax.vendorID, ax.productCode)
}

// MakeControl runs the axis adapter's state-machine step. Hosts that
// sequence drives themselves use this instead of the built-in driver.
func (c *Controller) MakeControl(axisIdx int, status uint16, startPos *int32, runEnable *bool) uint16 {
	if axisIdx < 0 || axisIdx >= len(c.axes) {
		return 0
	}
	return c.axes[axisIdx].adapter.MakeControl(status, startPos, runEnable)
}

// SnapshotState copies the last published cycle snapshot.
func (c *Controller) SnapshotState() Snapshot {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	out := c.snap
	out.Axes = append([]AxisDiag(nil), c.snap.Axes...)
	return out
}
