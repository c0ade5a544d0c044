// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

// Package adapter lets different servo drives plug into the same CiA-402
// controller surface. An adapter supplies the drive's identity, its PDO
// layout for synchronous-manager programming and domain registration, field
// decoders/encoders over the process image, and a per-cycle state-machine
// step that vendor implementations may override.
package adapter

import (
	"github.com/phi-robotics/motorlink/pkg/ecat"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

// MotorIdentity describes one drive model an adapter speaks for.
type MotorIdentity struct {
	VendorID    uint32
	ProductCode uint32
	Revision    uint32
	Serial      uint32
	Name        string
	HasDC       bool
	Position    int // bus position, -1 until assigned
}

// MotorStatus is the decoded input block of one axis.
type MotorStatus struct {
	StatusWord uint16
	ActualPos  int32
	ActualVel  int32
	ActualTor  int16
	OpMode     int8
	ErrorCode  uint16
}

// MotorControl is the output block of one axis before encoding.
type MotorControl struct {
	ControlWord uint16
	TargetPos   int32
	TargetVel   int32
	TargetTor   int16
	OpMode      int8
}

// Adapter is the per-vendor capability object. All operations are
// deterministic and perform no I/O; ConfigurePdos only records
// configuration on the slave handle.
type Adapter interface {
	// MotorInfo returns the identity this adapter matches.
	MotorInfo() MotorIdentity
	// Supports reports whether the adapter drives the given identity.
	Supports(vendorID, productCode uint32) bool
	// Name is a short human-readable adapter name.
	Name() string

	// RxPdo returns the output entries (controller -> drive) in emission
	// order; the list may contain gap entries.
	RxPdo() []pdo.Entry
	// TxPdo returns the input entries (drive -> controller).
	TxPdo() []pdo.Entry
	// ConfigurePdos programs the drive's synchronous managers.
	ConfigurePdos(sc ecat.SlaveConfig) error

	// ReadStatus decodes the input block. txOff holds one image offset per
	// TxPdo entry, in the same order.
	ReadStatus(pi []byte, txOff []uint32) MotorStatus
	// WriteControl encodes the output block. rxOff holds one image offset
	// per RxPdo entry, in the same order.
	WriteControl(pi []byte, rxOff []uint32, c MotorControl)

	// MakeControl is the per-cycle state-machine step: given the current
	// status word it returns the control word to emit. startPos may be
	// re-seeded and runEnable cleared by vendor fault handling.
	MakeControl(status uint16, startPos *int32, runEnable *bool) uint16
}
