// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package adapter

import (
	"github.com/phi-robotics/motorlink/pkg/cia402"
	"github.com/phi-robotics/motorlink/pkg/ecat"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

var _ Adapter = (*Standard)(nil)

// Standard implements the canonical CiA-402 layout and the standard
// power-state step. It matches no identity on its own; vendor adapters
// embed it and override what differs, and the controller falls back to it
// when the registry has no match but a fallback is allowed.
type Standard struct{}

// NewStandard returns the standard adapter.
func NewStandard() *Standard { return &Standard{} }

// MotorInfo implements Adapter. The zero identity marks "any drive".
func (s *Standard) MotorInfo() MotorIdentity {
	return MotorIdentity{Name: "Standard Servo", HasDC: true, Position: -1}
}

// Supports implements Adapter: the standard adapter never claims a drive.
func (s *Standard) Supports(vendorID, productCode uint32) bool { return false }

// Name implements Adapter.
func (s *Standard) Name() string { return "Standard" }

// RxPdo implements Adapter with the extended output set: position,
// velocity and torque targets plus the interpolation sub-object, with gap
// padding. Gap entries are never registered.
func (s *Standard) RxPdo() []pdo.Entry { return pdo.ExtendedOutput() }

// TxPdo implements Adapter with the extended input set.
func (s *Standard) TxPdo() []pdo.Entry { return pdo.ExtendedInput() }

// ConfigurePdos implements Adapter: SM2 carries the Rx mapping with the
// watchdog armed, SM3 the Tx mapping with the watchdog off; SM0/SM1 stay
// empty.
func (s *Standard) ConfigurePdos(sc ecat.SlaveConfig) error {
	return sc.ConfigurePdos(SyncLayout([]pdo.Pdo{pdo.ExtendedRxPdo()}, []pdo.Pdo{pdo.ExtendedTxPdo()}))
}

// SyncLayout builds the four-manager configuration every drive here uses.
func SyncLayout(rx, tx []pdo.Pdo) []ecat.SyncConfig {
	return []ecat.SyncConfig{
		{Index: 0, Dir: ecat.DirOutput, Watchdog: ecat.WdDisable},
		{Index: 1, Dir: ecat.DirInput, Watchdog: ecat.WdDisable},
		{Index: 2, Dir: ecat.DirOutput, Pdos: rx, Watchdog: ecat.WdEnable},
		{Index: 3, Dir: ecat.DirInput, Pdos: tx, Watchdog: ecat.WdDisable},
	}
}

// ReadStatus implements Adapter over the canonical input set.
func (s *Standard) ReadStatus(pi []byte, txOff []uint32) MotorStatus {
	return decodeStatus(s.TxPdo(), pi, txOff)
}

// decodeStatus reads every status field the entry list maps.
func decodeStatus(in []pdo.Entry, pi []byte, txOff []uint32) MotorStatus {
	var st MotorStatus
	if i := pdo.FindEntry(in, pdo.ObjStatusWord); i >= 0 {
		st.StatusWord = pdo.ReadU16(pi, txOff[i])
	}
	if i := pdo.FindEntry(in, pdo.ObjActualPosition); i >= 0 {
		st.ActualPos = pdo.ReadS32(pi, txOff[i])
	}
	if i := pdo.FindEntry(in, pdo.ObjActualVelocity); i >= 0 {
		st.ActualVel = pdo.ReadS32(pi, txOff[i])
	}
	if i := pdo.FindEntry(in, pdo.ObjActualTorque); i >= 0 {
		st.ActualTor = pdo.ReadS16(pi, txOff[i])
	}
	if i := pdo.FindEntry(in, pdo.ObjOpModeDisplay); i >= 0 {
		st.OpMode = pdo.ReadS8(pi, txOff[i])
	}
	if i := pdo.FindEntry(in, pdo.ObjErrorCode); i >= 0 {
		st.ErrorCode = pdo.ReadU16(pi, txOff[i])
	}
	return st
}

// WriteControl implements Adapter over the canonical output set.
func (s *Standard) WriteControl(pi []byte, rxOff []uint32, c MotorControl) {
	encodeControl(s.RxPdo(), pi, rxOff, c)
}

// encodeControl writes every control field the entry list maps.
func encodeControl(out []pdo.Entry, pi []byte, rxOff []uint32, c MotorControl) {
	if i := pdo.FindEntry(out, pdo.ObjControlWord); i >= 0 {
		pdo.WriteU16(pi, rxOff[i], c.ControlWord)
	}
	if i := pdo.FindEntry(out, pdo.ObjTargetPosition); i >= 0 {
		pdo.WriteS32(pi, rxOff[i], c.TargetPos)
	}
	if i := pdo.FindEntry(out, pdo.ObjTargetVelocity); i >= 0 {
		pdo.WriteS32(pi, rxOff[i], c.TargetVel)
	}
	if i := pdo.FindEntry(out, pdo.ObjTargetTorque); i >= 0 {
		pdo.WriteS16(pi, rxOff[i], c.TargetTor)
	}
	if i := pdo.FindEntry(out, pdo.ObjOpMode); i >= 0 {
		pdo.WriteS8(pi, rxOff[i], c.OpMode)
	}
}

// MakeControl implements Adapter with the standard bit-level step.
func (s *Standard) MakeControl(status uint16, startPos *int32, runEnable *bool) uint16 {
	return cia402.MakeControl(status, startPos, runEnable)
}
