// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

// Package cia402 carries the CiA-402 drive profile vocabulary shared by the
// controller and the vendor adapters: status word bits, control words, the
// masked power-state machine, and operation modes.
package cia402

// Status word bits (low byte plus the two diagnostic bits the controller
// inspects). Note that bit 5 is high when quick stop is NOT active.
const (
	SwReadyToSwitchOn  uint16 = 0x0001
	SwSwitchedOn       uint16 = 0x0002
	SwOperationEnabled uint16 = 0x0004
	SwFault            uint16 = 0x0008
	SwVoltageEnabled   uint16 = 0x0010
	SwQuickStop        uint16 = 0x0020
	SwSwitchOnDisabled uint16 = 0x0040
	SwWarning          uint16 = 0x0080

	SwTargetReached uint16 = 0x0400
	SwSetPointAck   uint16 = 0x1000
)

// StateMask selects the power-state machine bits from the status word.
const StateMask uint16 = 0x6F

// State is the masked power-state value (status & StateMask).
type State uint16

const (
	StateNotReady         State = 0x00
	StateSwitchOnDisabled State = 0x40
	StateReadyToSwitchOn  State = 0x21
	StateSwitchedOn       State = 0x23
	StateOperationEnabled State = 0x27
	StateQuickStopActive  State = 0x07
)

// StateOf masks a status word down to its power-state value.
func StateOf(status uint16) State {
	return State(status & StateMask)
}

func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not ready to switch on"
	case StateSwitchOnDisabled:
		return "switch on disabled"
	case StateReadyToSwitchOn:
		return "ready to switch on"
	case StateSwitchedOn:
		return "switched on"
	case StateOperationEnabled:
		return "operation enabled"
	case StateQuickStopActive:
		return "quick stop active"
	default:
		return "unknown"
	}
}

// Control words the controller emits. CtrlIdle is the first half of the
// fault-reset pulse; the EYOU adapter also emits it while damping state
// transitions.
const (
	CtrlIdle             uint16 = 0x0000
	CtrlDisableQuickStop uint16 = 0x0002
	CtrlShutdown         uint16 = 0x0006
	CtrlSwitchOn         uint16 = 0x0007
	CtrlEnableOperation  uint16 = 0x000F
	CtrlFaultReset       uint16 = 0x0080
)

// OpMode is a CiA-402 operation mode (object 0x6060/0x6061).
type OpMode int8

const (
	ModeProfilePosition      OpMode = 1
	ModeVelocity             OpMode = 2
	ModeProfileVelocity      OpMode = 3
	ModeProfileTorque        OpMode = 4
	ModeHoming               OpMode = 6
	ModeInterpolatedPosition OpMode = 7
	ModeCSP                  OpMode = 8
	ModeCSV                  OpMode = 9
	ModeCST                  OpMode = 10
)

func (m OpMode) String() string {
	switch m {
	case ModeProfilePosition:
		return "pp"
	case ModeVelocity:
		return "vl"
	case ModeProfileVelocity:
		return "pv"
	case ModeProfileTorque:
		return "pt"
	case ModeHoming:
		return "hm"
	case ModeInterpolatedPosition:
		return "ip"
	case ModeCSP:
		return "csp"
	case ModeCSV:
		return "csv"
	case ModeCST:
		return "cst"
	default:
		return "reserved"
	}
}

// FaultPending reports whether the drive needs a fault-reset pulse: the
// fault bit is set while ready-to-switch-on is clear.
func FaultPending(status uint16) bool {
	return status&SwFault != 0 && status&SwReadyToSwitchOn == 0
}
