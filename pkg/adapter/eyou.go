// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package adapter

import (
	"github.com/phi-robotics/motorlink/pkg/cia402"
)

// Fault codes the EYOU firmware reports in the status word high byte for
// position following errors.
const (
	eyouFaultFollowing  = 0x08
	eyouFaultFollowing2 = 0x09
)

var _ Adapter = (*Eyou)(nil)

// Eyou drives EYOU servo motors (vendor 0x1097, product 0x2406). The
// firmware needs damped state transitions and a bounded fault-reset
// retry before it accepts a restart, so the step override carries its own
// counters. Both thresholds are tunables; the defaults are what the
// hardware was commissioned with.
type Eyou struct {
	Standard

	// StateChangeDelay holds the control word idle for this many cycles
	// after any status change.
	StateChangeDelay int
	// FaultResetLimit bounds consecutive 0x0080 attempts before the
	// restart branch fires.
	FaultResetLimit int
	// ForceRestart enables the non-standard "force shutdown on persistent
	// fault" branch. Some drives object to it; turn it off for those.
	ForceRestart bool

	lastStatus uint16
	delayCount int
	resetCount int
}

// NewEyou returns an EYOU adapter with the commissioned tunables.
func NewEyou() *Eyou {
	return &Eyou{StateChangeDelay: 5, FaultResetLimit: 10, ForceRestart: true}
}

// MotorInfo implements Adapter.
func (e *Eyou) MotorInfo() MotorIdentity {
	return MotorIdentity{
		VendorID:    0x00001097,
		ProductCode: 0x00002406,
		Name:        "EYOU Servo Motor",
		HasDC:       true,
		Position:    -1,
	}
}

// Supports implements Adapter.
func (e *Eyou) Supports(vendorID, productCode uint32) bool {
	return vendorID == 0x00001097 && productCode == 0x00002406
}

// Name implements Adapter.
func (e *Eyou) Name() string { return "EYOU" }

// The drive speaks the standard extended mapping; only the step differs,
// so layout and codecs come from the embedded Standard.

// MakeControl implements the EYOU step override: damped transitions,
// following-error diagnosis on the status high byte, a bounded
// reset-then-restart fault policy, and the firmware's quick-stop quirks.
func (e *Eyou) MakeControl(status uint16, startPos *int32, runEnable *bool) uint16 {
	if status != e.lastStatus {
		e.lastStatus = status
		e.delayCount = 0
	} else {
		e.delayCount++
	}
	if e.delayCount < e.StateChangeDelay {
		return cia402.CtrlIdle
	}

	ready := status&cia402.SwReadyToSwitchOn != 0
	switched := status&cia402.SwSwitchedOn != 0
	opEnabled := status&cia402.SwOperationEnabled != 0
	fault := status&cia402.SwFault != 0
	quickStop := status&cia402.SwQuickStop != 0
	warning := status&cia402.SwWarning != 0

	if fault {
		code := uint8(status >> 8)
		if code == eyouFaultFollowing || code == eyouFaultFollowing2 {
			// Following error: halt, reset, make the host re-issue run.
			*runEnable = false
			e.resetCount = 0
			return cia402.CtrlFaultReset
		}
		e.resetCount++
		if e.resetCount <= e.FaultResetLimit {
			*runEnable = false
			return cia402.CtrlFaultReset
		}
		e.resetCount = 0
		if e.ForceRestart {
			*runEnable = true
			return cia402.CtrlShutdown
		}
		*runEnable = false
		return cia402.CtrlFaultReset
	}

	if warning {
		*runEnable = true
		switch {
		case ready && switched && !opEnabled:
			return cia402.CtrlEnableOperation
		case ready && !switched:
			return cia402.CtrlSwitchOn
		default:
			return cia402.CtrlShutdown
		}
	}

	if quickStop {
		switch {
		case ready && !switched:
			*runEnable = true
			return cia402.CtrlSwitchOn
		case ready && switched:
			*runEnable = true
			return cia402.CtrlDisableQuickStop
		default:
			*runEnable = false
			return cia402.CtrlDisableQuickStop
		}
	}

	// The firmware powers up reporting all-zero; kick it with shutdown.
	if status == 0 {
		*runEnable = true
		return cia402.CtrlShutdown
	}

	return e.Standard.MakeControl(status, startPos, runEnable)
}
