// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package ecat

import (
	"fmt"

	"github.com/phi-robotics/motorlink/pkg/cia402"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

var (
	_ Master      = (*SimMaster)(nil)
	_ Domain      = (*simDomain)(nil)
	_ SlaveConfig = (*SimSlave)(nil)
)

// SimMaster is an in-process master with a small CiA-402 drive model per
// slave. It assigns process-image offsets at activation in registration
// order and steps every drive once per Receive/Send pair, which is enough
// to bring the whole controller up without bus hardware.
type SimMaster struct {
	slaves    []*SimSlave
	domains   []*simDomain
	refClock  SlaveConfig
	activated bool
	released  bool
	appTime   uint64

	// FailActivate makes the next Activate call fail, for error-path tests.
	FailActivate bool
}

// NewSimMaster returns an empty simulated master. Add slaves before the
// controller reserves it.
func NewSimMaster() *SimMaster {
	return &SimMaster{}
}

// AddSlave places a simulated drive on the bus and returns it for scripting.
func (m *SimMaster) AddSlave(position uint16, vendorID, productCode uint32) *SimSlave {
	s := &SimSlave{
		info: SlaveInfo{
			Position:    position,
			VendorID:    vendorID,
			ProductCode: productCode,
			Name:        fmt.Sprintf("sim-drive-%d", position),
			HasDC:       true,
		},
		status: simStatusDisabled,
	}
	m.slaves = append(m.slaves, s)
	return s
}

// CreateDomain implements Master.
func (m *SimMaster) CreateDomain() (Domain, error) {
	if m.released {
		return nil, fmt.Errorf("sim: master released")
	}
	d := &simDomain{master: m}
	m.domains = append(m.domains, d)
	return d, nil
}

// Slaves implements Master.
func (m *SimMaster) Slaves() ([]SlaveInfo, error) {
	if m.released {
		return nil, fmt.Errorf("sim: master released")
	}
	infos := make([]SlaveInfo, len(m.slaves))
	for i, s := range m.slaves {
		infos[i] = s.info
	}
	return infos, nil
}

// SlaveConfig implements Master. The identity must match the slave actually
// present at the position, like a real master refusing a mismatched config.
func (m *SimMaster) SlaveConfig(alias, position uint16, vendorID, productCode uint32) (SlaveConfig, error) {
	if alias != 0 {
		return nil, fmt.Errorf("sim: aliases not modeled")
	}
	s := m.slaveAt(position)
	if s == nil {
		return nil, fmt.Errorf("sim: no slave at position %d", position)
	}
	if s.info.VendorID != vendorID || s.info.ProductCode != productCode {
		return nil, fmt.Errorf("sim: slave %d identity mismatch: want %08x:%08x, bus has %08x:%08x",
			position, vendorID, productCode, s.info.VendorID, s.info.ProductCode)
	}
	return s, nil
}

func (m *SimMaster) slaveAt(position uint16) *SimSlave {
	for _, s := range m.slaves {
		if s.info.Position == position {
			return s
		}
	}
	return nil
}

// SelectReferenceClock implements Master.
func (m *SimMaster) SelectReferenceClock(sc SlaveConfig) error {
	m.refClock = sc
	return nil
}

// ReferenceClock returns the slave selected as DC reference, or nil.
func (m *SimMaster) ReferenceClock() SlaveConfig { return m.refClock }

// ApplicationTime implements Master.
func (m *SimMaster) ApplicationTime(ns uint64) { m.appTime = ns }

// SyncSlaveClocks implements Master. The sim has no clock drift to correct.
func (m *SimMaster) SyncSlaveClocks() {}

// Activate implements Master: resolves every registered entry against the
// slave PDO mappings, assigns image offsets in registration order, and
// allocates the domain images.
func (m *SimMaster) Activate() error {
	if m.released {
		return fmt.Errorf("sim: master released")
	}
	if m.FailActivate {
		return fmt.Errorf("sim: forced activation failure")
	}
	for _, d := range m.domains {
		if err := d.layout(); err != nil {
			return err
		}
	}
	m.activated = true
	return nil
}

// Receive implements Master: every slave publishes its input block.
func (m *SimMaster) Receive() {
	if !m.activated {
		return
	}
	for _, d := range m.domains {
		for _, s := range m.slaves {
			s.publish(d.data)
		}
	}
}

// Send implements Master: every slave consumes its output block and steps
// its drive model.
func (m *SimMaster) Send() {
	if !m.activated {
		return
	}
	for _, d := range m.domains {
		for _, s := range m.slaves {
			s.consume(d.data)
		}
	}
}

// Release implements Master.
func (m *SimMaster) Release() {
	m.released = true
	m.activated = false
}

type simDomain struct {
	master *SimMaster
	regs   []EntryReg
	data   []byte
}

func (d *simDomain) RegisterEntryList(regs []EntryReg) error {
	for _, r := range regs {
		if r.Index == 0 {
			return fmt.Errorf("sim: gap entry in registration list")
		}
		if r.Offset == nil {
			return fmt.Errorf("sim: entry 0x%04X has no offset slot", r.Index)
		}
	}
	d.regs = append(d.regs, regs...)
	return nil
}

func (d *simDomain) layout() error {
	var cursor uint32
	for _, r := range d.regs {
		s := d.master.slaveAt(r.Position)
		if s == nil {
			return fmt.Errorf("sim: registration for absent slave %d", r.Position)
		}
		e, dir, ok := s.mappedEntry(r.Index, r.Sub)
		if !ok {
			return fmt.Errorf("sim: 0x%04X:%d not mapped on slave %d", r.Index, r.Sub, r.Position)
		}
		*r.Offset = cursor
		s.noteOffset(dir, r.Index, r.Sub, cursor)
		cursor += uint32(e.ByteLen())
	}
	d.data = make([]byte, cursor)
	return nil
}

func (d *simDomain) Process() {}
func (d *simDomain) Queue()   {}

func (d *simDomain) Data() []byte { return d.data }

// Raw drive status values the model moves through. Masked with 0x6F these
// are the standard power states; the extra bits mimic what real drives
// report (voltage enabled, quick stop inactive, remote).
const (
	simStatusDisabled = 0x0250 // switch on disabled
	simStatusReady    = 0x0231 // ready to switch on
	simStatusOn       = 0x0233 // switched on
	simStatusEnabled  = 0x0237 // operation enabled
	simStatusFault    = 0x0008
)

type sdoWrite struct {
	Index uint16
	Sub   uint8
	Value uint32
	Bits  int
}

type objKey struct {
	index uint16
	sub   uint8
}

// SimSlave is one simulated drive. Tests may script its status sequence or
// inject faults; otherwise it walks the CiA-402 power states in response to
// the control words it receives.
type SimSlave struct {
	info  SlaveInfo
	syncs []SyncConfig

	sdoLog    []sdoWrite
	dcAssign  uint16
	dcPeriod  uint64
	dcShift   uint64
	dcApplied bool

	status    uint16
	actual    int32
	errorCode uint16
	faulted   bool

	script    []uint16
	scriptPos int

	outOff map[objKey]uint32
	inOff  map[objKey]uint32
}

// SdoWrite8 implements SlaveConfig.
func (s *SimSlave) SdoWrite8(index uint16, sub uint8, value uint8) error {
	s.sdoLog = append(s.sdoLog, sdoWrite{index, sub, uint32(value), 8})
	return nil
}

// SdoWrite32 implements SlaveConfig.
func (s *SimSlave) SdoWrite32(index uint16, sub uint8, value uint32) error {
	s.sdoLog = append(s.sdoLog, sdoWrite{index, sub, value, 32})
	return nil
}

// ConfigurePdos implements SlaveConfig.
func (s *SimSlave) ConfigurePdos(syncs []SyncConfig) error {
	s.syncs = append([]SyncConfig(nil), syncs...)
	return nil
}

// ConfigureDC implements SlaveConfig.
func (s *SimSlave) ConfigureDC(assignActivate uint16, sync0Period, sync0Shift, sync1Period, sync1Shift uint64) error {
	s.dcAssign = assignActivate
	s.dcPeriod = sync0Period
	s.dcShift = sync0Shift
	s.dcApplied = true
	return nil
}

// DCPeriod returns the programmed sync0 period, for tests.
func (s *SimSlave) DCPeriod() (assignActivate uint16, periodNs uint64, ok bool) {
	return s.dcAssign, s.dcPeriod, s.dcApplied
}

// SdoValue returns the last queued SDO write for an object, for tests.
func (s *SimSlave) SdoValue(index uint16, sub uint8) (uint32, bool) {
	for i := len(s.sdoLog) - 1; i >= 0; i-- {
		if s.sdoLog[i].Index == index && s.sdoLog[i].Sub == sub {
			return s.sdoLog[i].Value, true
		}
	}
	return 0, false
}

// ScriptStatus replaces the drive model's status progression with a fixed
// sequence, one value per cycle; the last value repeats.
func (s *SimSlave) ScriptStatus(seq []uint16) {
	s.script = append([]uint16(nil), seq...)
	s.scriptPos = 0
}

// InjectFault forces the drive into fault until it sees a fault reset.
func (s *SimSlave) InjectFault(errorCode uint16) {
	s.faulted = true
	s.errorCode = errorCode
	s.status = simStatusFault
}

// SetActual seeds the drive's reported actual position.
func (s *SimSlave) SetActual(v int32) { s.actual = v }

// Actual returns the drive's current actual position.
func (s *SimSlave) Actual() int32 { return s.actual }

// Status returns the drive's current raw status word.
func (s *SimSlave) Status() uint16 { return s.status }

func (s *SimSlave) mappedEntry(index uint16, sub uint8) (pdo.Entry, Direction, bool) {
	for _, sc := range s.syncs {
		for _, p := range sc.Pdos {
			for _, e := range p.Entries {
				if !e.IsGap() && e.Index == index && e.Sub == sub {
					return e, sc.Dir, true
				}
			}
		}
	}
	return pdo.Entry{}, DirOutput, false
}

func (s *SimSlave) noteOffset(dir Direction, index uint16, sub uint8, off uint32) {
	if s.outOff == nil {
		s.outOff = make(map[objKey]uint32)
		s.inOff = make(map[objKey]uint32)
	}
	if dir == DirOutput {
		s.outOff[objKey{index, sub}] = off
	} else {
		s.inOff[objKey{index, sub}] = off
	}
}

// publish writes the drive's input block into the image.
func (s *SimSlave) publish(data []byte) {
	st := s.status
	if s.script != nil {
		st = s.script[s.scriptPos]
		if s.scriptPos < len(s.script)-1 {
			s.scriptPos++
		}
	}
	for k, off := range s.inOff {
		switch k.index {
		case pdo.ObjStatusWord:
			pdo.WriteU16(data, off, st)
		case pdo.ObjActualPosition:
			pdo.WriteS32(data, off, s.actual)
		case pdo.ObjOpModeDisplay:
			pdo.WriteS8(data, off, int8(cia402.ModeCSP))
		case pdo.ObjErrorCode:
			pdo.WriteU16(data, off, s.errorCode)
		}
	}
}

// consume reads the drive's output block and advances the model.
func (s *SimSlave) consume(data []byte) {
	control, haveCtrl := s.readOut(data, pdo.ObjControlWord)
	if !haveCtrl {
		return
	}
	target, haveTgt := s.readOutS32(data, pdo.ObjTargetPosition)

	if s.script == nil {
		s.stepState(uint16(control))
	}
	// A drive in operation enabled tracks the commanded position.
	if haveTgt && cia402.StateOf(s.effectiveStatus()) == cia402.StateOperationEnabled {
		s.actual = target
	}
}

func (s *SimSlave) effectiveStatus() uint16 {
	if s.script != nil {
		return s.script[s.scriptPos]
	}
	return s.status
}

func (s *SimSlave) stepState(control uint16) {
	if s.faulted {
		if control == cia402.CtrlFaultReset {
			s.faulted = false
			s.errorCode = 0
			s.status = simStatusDisabled
		}
		return
	}
	switch control {
	case cia402.CtrlShutdown:
		if s.status == simStatusDisabled || cia402.StateOf(s.status) == cia402.StateNotReady {
			s.status = simStatusReady
		}
	case cia402.CtrlSwitchOn:
		if s.status == simStatusReady {
			s.status = simStatusOn
		}
	case cia402.CtrlEnableOperation:
		if s.status == simStatusOn || s.status == simStatusReady {
			s.status = simStatusEnabled
		}
	}
}

func (s *SimSlave) readOut(data []byte, index uint16) (uint32, bool) {
	off, ok := s.outOff[objKey{index, 0}]
	if !ok {
		return 0, false
	}
	return uint32(pdo.ReadU16(data, off)), true
}

func (s *SimSlave) readOutS32(data []byte, index uint16) (int32, bool) {
	off, ok := s.outOff[objKey{index, 0}]
	if !ok {
		return 0, false
	}
	return pdo.ReadS32(data, off), true
}
