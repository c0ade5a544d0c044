// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package motor

import (
	"fmt"

	"github.com/phi-robotics/motorlink/pkg/adapter"
	"github.com/phi-robotics/motorlink/pkg/cia402"
	"github.com/phi-robotics/motorlink/pkg/ecat"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

// cspWarmupCycles holds the target locked to the actual position for the
// first cycles after an axis enables, so the drive never sees a step jump.
const cspWarmupCycles = 10

// axis is the per-drive slot: identity, adapter, PDO offsets and the
// runtime state the cycle pipeline advances.
type axis struct {
	position    uint16
	vendorID    uint32
	productCode uint32
	name        string

	adapter adapter.Adapter
	sc      ecat.SlaveConfig

	// Registration-order entry lists and their image offsets, one cell
	// per entry. Gap entries keep a cell but it is never written by the
	// master nor read by the controller.
	rxEntries []pdo.Entry
	txEntries []pdo.Entry
	rxOff     []uint32
	txOff     []uint32

	// Hot-path offsets resolved once after activation.
	offCtrl    uint32
	offMode    uint32
	offTarget  uint32
	offStatus  uint32
	offActual  uint32
	offModeIn  uint32
	hasModeIn  bool
	offErrCode uint32
	hasErrCode bool
	offFollow  uint32
	hasFollow  bool
	offDin     uint32
	hasDin     bool
	offPrbStat uint32
	hasPrbStat bool
	offPrbPos  uint32
	hasPrbPos  bool
	offSrvErr  uint32
	hasSrvErr  bool
	offResv    uint32
	hasResv    bool

	// Runtime state, touched only by the tick thread.
	statusWord   uint16
	actualPos    int32
	modeDisplay  int8
	targetPos    int32
	opMode       int8
	runEnable    bool
	seenEnabled  bool
	servoEnabled bool
	cspWarmup    int
	lastActual   int32
	timeCnt      uint32
	startPos     int32
	faultTicks   int
}

// resolveOffsets binds the hot-path offsets after domain registration has
// filled the offset cells. The output side must map control word, mode and
// target; the input side status word and actual position. Everything else
// is optional diagnostics.
func (ax *axis) resolveOffsets() error {
	req := func(entries []pdo.Entry, off []uint32, index uint16) (uint32, error) {
		if i := pdo.FindEntry(entries, index); i >= 0 {
			return off[i], nil
		}
		return 0, fmt.Errorf("slave %d: mapping lacks 0x%04X: %w", ax.position, index, ErrConfig)
	}
	opt := func(entries []pdo.Entry, off []uint32, index uint16) (uint32, bool) {
		if i := pdo.FindEntry(entries, index); i >= 0 {
			return off[i], true
		}
		return 0, false
	}

	var err error
	if ax.offCtrl, err = req(ax.rxEntries, ax.rxOff, pdo.ObjControlWord); err != nil {
		return err
	}
	if ax.offMode, err = req(ax.rxEntries, ax.rxOff, pdo.ObjOpMode); err != nil {
		return err
	}
	if ax.offTarget, err = req(ax.rxEntries, ax.rxOff, pdo.ObjTargetPosition); err != nil {
		return err
	}
	if ax.offStatus, err = req(ax.txEntries, ax.txOff, pdo.ObjStatusWord); err != nil {
		return err
	}
	if ax.offActual, err = req(ax.txEntries, ax.txOff, pdo.ObjActualPosition); err != nil {
		return err
	}

	ax.offModeIn, ax.hasModeIn = opt(ax.txEntries, ax.txOff, pdo.ObjOpModeDisplay)
	ax.offErrCode, ax.hasErrCode = opt(ax.txEntries, ax.txOff, pdo.ObjErrorCode)
	ax.offFollow, ax.hasFollow = opt(ax.txEntries, ax.txOff, pdo.ObjFollowingError)
	ax.offDin, ax.hasDin = opt(ax.txEntries, ax.txOff, pdo.ObjDigitalInputs)
	ax.offPrbStat, ax.hasPrbStat = opt(ax.txEntries, ax.txOff, pdo.ObjProbeStatus)
	ax.offPrbPos, ax.hasPrbPos = opt(ax.txEntries, ax.txOff, pdo.ObjProbePosition)
	ax.offSrvErr, ax.hasSrvErr = opt(ax.txEntries, ax.txOff, pdo.ObjServoError)
	ax.offResv, ax.hasResv = opt(ax.rxEntries, ax.rxOff, pdo.ObjInterpPeriod)
	return nil
}

// reset clears the axis's run state so the state machine walks the drive
// up from scratch after an explicit fault clear.
func (ax *axis) reset() {
	ax.servoEnabled = false
	ax.seenEnabled = false
	ax.runEnable = false
	ax.cspWarmup = 0
	ax.timeCnt = 0
	ax.faultTicks = 0
	ax.opMode = int8(cia402.ModeCSP)
}
