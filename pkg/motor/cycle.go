// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package motor

import (
	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/cia402"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

// faultPersistTicks is how many consecutive fault cycles make the fault
// count as persistent in diagnostics.
const faultPersistTicks = 250

// Tick runs one cycle: exchange process data, advance every axis's state
// machine, apply the motion-start barrier and queue the outputs. It must
// be called at the configured cycle period; errors are recorded, never
// returned, and the next cycle is always attempted.
func (c *Controller) Tick() {
	if !c.running.Load() || c.pi == nil {
		return
	}
	now := c.now()
	c.master.ApplicationTime(now)
	c.master.Receive()
	c.domain.Process()
	c.master.SyncSlaveClocks()

	c.cmdMu.Lock()
	cmd := c.cmd
	c.cmdMu.Unlock()

	allEnabled := true
	for i := range c.axes {
		ax := &c.axes[i]
		c.stepAxis(ax, cmd)
		if !ax.seenEnabled {
			allEnabled = false
		}
	}

	c.applyBarrier(cmd, allEnabled, now)
	c.publish(now)

	c.domain.Queue()
	c.master.Send()
	c.cycleCount++
}

// stepAxis advances one axis for this cycle.
func (c *Controller) stepAxis(ax *axis, cmd Command) {
	s := pdo.ReadU16(c.pi, ax.offStatus)
	ax.statusWord = s
	ax.seenEnabled = cia402.StateOf(s) == cia402.StateOperationEnabled
	actual := pdo.ReadS32(c.pi, ax.offActual)
	ax.actualPos = actual
	if ax.hasModeIn {
		ax.modeDisplay = pdo.ReadS8(c.pi, ax.offModeIn)
	}

	if cia402.FaultPending(s) {
		ax.faultTicks++
		if ax.faultTicks == faultPersistTicks {
			c.log.Warn("fault persistent",
				zap.Uint16("position", ax.position), zap.Uint16("status", s))
		}
	} else {
		ax.faultTicks = 0
	}

	switch {
	case !ax.servoEnabled:
		if cia402.FaultPending(s) {
			// Reset pulse: idle first, then the one-shot reset. Nothing
			// else touches the control word this cycle.
			pdo.WriteU16(c.pi, ax.offCtrl, cia402.CtrlIdle)
			pdo.WriteU16(c.pi, ax.offCtrl, cia402.CtrlFaultReset)
		} else {
			st := cia402.Step(s)
			if st.SeedTarget {
				ax.targetPos = actual
				pdo.WriteS32(c.pi, ax.offTarget, ax.targetPos)
			}
			if st.Enabled {
				ax.servoEnabled = true
				ax.cspWarmup = cspWarmupCycles
				ax.startPos = actual
				c.log.Info("axis enabled",
					zap.Uint16("position", ax.position),
					zap.Uint16("status", s),
					zap.Int32("actual", actual))
			}
			pdo.WriteU16(c.pi, ax.offCtrl, st.Control)
		}
		pdo.WriteS8(c.pi, ax.offMode, ax.opMode)

	case !c.motionStarted:
		// Barrier not fired yet: hold the target at the actual position.
		ax.timeCnt++
		ax.targetPos = actual
		pdo.WriteS32(c.pi, ax.offTarget, ax.targetPos)
		pdo.WriteU16(c.pi, ax.offCtrl, cia402.CtrlEnableOperation)
		pdo.WriteS8(c.pi, ax.offMode, ax.opMode)
		ax.lastActual = actual

	default:
		ax.timeCnt++
		if ax.cspWarmup > 0 {
			ax.targetPos = actual
			ax.cspWarmup--
		} else {
			ax.targetPos += cmd.delta()
		}
		pdo.WriteS32(c.pi, ax.offTarget, ax.targetPos)
		pdo.WriteU16(c.pi, ax.offCtrl, cia402.CtrlEnableOperation)
		pdo.WriteS8(c.pi, ax.offMode, ax.opMode)
		ax.lastActual = actual
	}
}

// applyBarrier arms once every axis has been seen enabled while run is
// requested, and fires after the configured delay: all targets re-seed to
// their actual positions in the same cycle, then motion starts. The
// barrier never re-arms within a session; a stop command only zeroes the
// per-cycle delta.
func (c *Controller) applyBarrier(cmd Command, allEnabled bool, now uint64) {
	if c.motionStarted || !cmd.Run {
		return
	}
	if !c.barrierArmed && allEnabled {
		c.barrierArmed = true
		c.barrierStart = now
		c.log.Info("barrier armed", zap.Uint64("delay_ns", c.barrierDelay))
	}
	if c.barrierArmed && now-c.barrierStart >= c.barrierDelay {
		for i := range c.axes {
			ax := &c.axes[i]
			actual := pdo.ReadS32(c.pi, ax.offActual)
			ax.targetPos = actual
			pdo.WriteS32(c.pi, ax.offTarget, ax.targetPos)
			pdo.WriteU16(c.pi, ax.offCtrl, cia402.CtrlEnableOperation)
			pdo.WriteS8(c.pi, ax.offMode, ax.opMode)
		}
		c.motionStarted = true
		c.barrierArmed = false
		c.log.Info("barrier fired, synchronized motion start",
			zap.Int("axes", len(c.axes)))
	}
}

// publish refreshes the per-cycle diagnostics and hands them to the
// observer and the snapshot readers.
func (c *Controller) publish(now uint64) {
	for i := range c.axes {
		ax := &c.axes[i]
		d := AxisDiag{
			Status:       ax.statusWord,
			ModeDisplay:  ax.modeDisplay,
			Target:       ax.targetPos,
			Actual:       ax.actualPos,
			ServoEnabled: ax.servoEnabled,
		}
		if ax.hasFollow {
			d.FollowingErr = pdo.ReadS32(c.pi, ax.offFollow)
		}
		if ax.hasErrCode {
			d.ErrorCode = pdo.ReadU16(c.pi, ax.offErrCode)
		}
		if ax.hasSrvErr {
			d.ServoError = pdo.ReadU16(c.pi, ax.offSrvErr)
		}
		if ax.hasDin {
			d.DigitalInputs = pdo.ReadU32(c.pi, ax.offDin)
		}
		if ax.hasPrbStat {
			d.ProbeStatus = pdo.ReadU16(c.pi, ax.offPrbStat)
		}
		if ax.hasPrbPos {
			d.ProbePos = pdo.ReadS32(c.pi, ax.offPrbPos)
		}
		c.diag[i] = d
	}
	if c.observer != nil {
		c.observer.ObserveCycle(c.cycleCount, now, c.diag)
	}
	c.snapMu.Lock()
	c.snap.Cycle = c.cycleCount
	c.snap.TimeNs = now
	c.snap.MotionStarted = c.motionStarted
	c.snap.BarrierArmed = c.barrierArmed
	copy(c.snap.Axes, c.diag)
	c.snapMu.Unlock()
}
