// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package pdo

// Canonical CiA-402 dictionary objects exchanged by the controller.
const (
	ObjErrorCode        = 0x603F
	ObjControlWord      = 0x6040
	ObjStatusWord       = 0x6041
	ObjOpMode           = 0x6060
	ObjOpModeDisplay    = 0x6061
	ObjActualPosition   = 0x6064
	ObjActualVelocity   = 0x606C
	ObjTargetTorque     = 0x6071
	ObjActualTorque     = 0x6077
	ObjTargetPosition   = 0x607A
	ObjProfileVelocity  = 0x6081
	ObjProfileAccel     = 0x6083
	ObjProfileDecel     = 0x6084
	ObjInterpPeriod     = 0x60C2
	ObjProbeFunction    = 0x60B8
	ObjProbeStatus      = 0x60B9
	ObjProbePosition    = 0x60BA
	ObjTargetVelocity   = 0x60FF
	ObjFollowingError   = 0x60F4
	ObjDigitalInputs    = 0x60FD
	ObjServoError       = 0x213F
	ObjVendorReserved   = 0x2026
)

// DefaultOutput returns the canonical output (Rx) entry set, in emission
// order: control word, operation mode, target position, touch probe function.
func DefaultOutput() []Entry {
	return []Entry{
		{ObjControlWord, 0, 16},
		{ObjOpMode, 0, 8},
		{ObjTargetPosition, 0, 32},
		{ObjProbeFunction, 0, 16},
	}
}

// DefaultInput returns the canonical input (Tx) entry set, in emission order.
func DefaultInput() []Entry {
	return []Entry{
		{ObjErrorCode, 0, 16},
		{ObjStatusWord, 0, 16},
		{ObjActualPosition, 0, 32},
		{ObjOpModeDisplay, 0, 8},
		{ObjProbeStatus, 0, 16},
		{ObjProbePosition, 0, 32},
		{ObjFollowingError, 0, 32},
		{ObjDigitalInputs, 0, 32},
		{ObjServoError, 0, 16},
	}
}

// DefaultRxPdo wraps the default output set under the first Rx PDO index.
func DefaultRxPdo() Pdo {
	return Pdo{Index: RxPdoBase, Entries: DefaultOutput()}
}

// DefaultTxPdo wraps the default input set under the first Tx PDO index.
func DefaultTxPdo() Pdo {
	return Pdo{Index: TxPdoBase, Entries: DefaultInput()}
}

// ExtendedOutput returns the wider output mapping the standard adapter
// programs: control word and position target first, then velocity and
// torque targets and the interpolation sub-object. Trailing gap cells pad
// the table out to the drives' fixed mapping size.
func ExtendedOutput() []Entry {
	return []Entry{
		{ObjControlWord, 0, 16},
		{ObjTargetPosition, 0, 32},
		{ObjTargetVelocity, 0, 32},
		{ObjTargetTorque, 0, 16},
		{ObjOpMode, 0, 8},
		{ObjInterpPeriod, 0, 8},
		{}, // gap
		{}, // gap
		{}, // gap
		{}, // gap
	}
}

// ExtendedInput returns the wider input mapping: velocity and torque
// actuals plus the vendor reserved byte, gap-padded like the output set.
func ExtendedInput() []Entry {
	return []Entry{
		{ObjStatusWord, 0, 16},
		{ObjActualPosition, 0, 32},
		{ObjActualVelocity, 0, 32},
		{ObjActualTorque, 0, 16},
		{ObjOpModeDisplay, 0, 8},
		{ObjErrorCode, 0, 16},
		{ObjVendorReserved, 0, 8},
		{}, // gap
		{}, // gap
		{}, // gap
	}
}

// ExtendedRxPdo wraps the extended output set under the first Rx PDO
// index.
func ExtendedRxPdo() Pdo {
	return Pdo{Index: RxPdoBase, Entries: ExtendedOutput()}
}

// ExtendedTxPdo wraps the extended input set under the first Tx PDO index.
func ExtendedTxPdo() Pdo {
	return Pdo{Index: TxPdoBase, Entries: ExtendedInput()}
}

// FindEntry returns the position of the first entry with the given object
// index, or -1 when the set does not carry it.
func FindEntry(entries []Entry, index uint16) int {
	for i, e := range entries {
		if !e.IsGap() && e.Index == index {
			return i
		}
	}
	return -1
}
