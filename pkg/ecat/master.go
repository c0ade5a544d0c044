// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

// Package ecat defines the cyclic fieldbus master surface the controller
// drives: reserve a master, create a process-data domain, configure slaves,
// register PDO entries, activate, and exchange process data once per cycle.
// The package also ships an in-process simulated master so the controller,
// the CLI and the tests run without bus hardware.
package ecat

import "github.com/phi-robotics/motorlink/pkg/pdo"

// Direction of a synchronous manager.
type Direction int

const (
	DirOutput Direction = iota // controller -> drive
	DirInput                   // drive -> controller
)

// Watchdog mode for a synchronous manager.
type Watchdog int

const (
	WdDisable Watchdog = iota
	WdEnable
)

// SyncConfig programs one synchronous manager with its PDO assignment.
type SyncConfig struct {
	Index    uint8
	Dir      Direction
	Pdos     []pdo.Pdo
	Watchdog Watchdog
}

// EntryReg asks the domain to map one PDO entry into the process image.
// The master writes the assigned byte offset through Offset during
// registration; BitPos stays nil for byte-aligned entries.
type EntryReg struct {
	Alias       uint16
	Position    uint16
	VendorID    uint32
	ProductCode uint32
	Index       uint16
	Sub         uint8
	Offset      *uint32
	BitPos      *uint32
}

// SlaveInfo identifies one slave found on the bus.
type SlaveInfo struct {
	Position    uint16
	VendorID    uint32
	ProductCode uint32
	Revision    uint32
	Serial      uint32
	Name        string
	HasDC       bool
}

// SlaveConfig is the per-slave configuration handle obtained from the
// master before activation.
type SlaveConfig interface {
	// SdoWrite8 queues an 8-bit service-data write applied when the slave
	// comes up.
	SdoWrite8(index uint16, sub uint8, value uint8) error
	// SdoWrite32 queues a 32-bit service-data write.
	SdoWrite32(index uint16, sub uint8, value uint32) error
	// ConfigurePdos programs the synchronous managers and their PDO
	// assignment.
	ConfigurePdos(syncs []SyncConfig) error
	// ConfigureDC programs distributed-clock sync signals. assignActivate
	// is the vendor's AssignActivate word; periods and shifts are in
	// nanoseconds.
	ConfigureDC(assignActivate uint16, sync0Period, sync0Shift, sync1Period, sync1Shift uint64) error
}

// Domain is a process-data domain: a contiguous image exchanged with a set
// of registered PDO entries each cycle.
type Domain interface {
	// RegisterEntryList binds all entries at once; offsets become valid
	// after the master activates. Gap entries must not appear in the list.
	RegisterEntryList(regs []EntryReg) error
	// Process evaluates the datagrams received for this domain.
	Process()
	// Queue marks the domain's data for transmission with the next Send.
	Queue()
	// Data returns the process image. The slice is only valid between
	// Activate and Release and is owned by the master.
	Data() []byte
}

// Master is the cyclic bus master. Configuration calls are only legal
// before Activate; Receive/Send/ApplicationTime/SyncSlaveClocks only after.
type Master interface {
	// CreateDomain allocates a new process-data domain.
	CreateDomain() (Domain, error)
	// Slaves enumerates the slaves currently on the bus.
	Slaves() ([]SlaveInfo, error)
	// SlaveConfig obtains the configuration handle for the slave expected
	// at (alias, position) with the given identity.
	SlaveConfig(alias, position uint16, vendorID, productCode uint32) (SlaveConfig, error)
	// SelectReferenceClock picks the slave whose clock the bus follows.
	SelectReferenceClock(sc SlaveConfig) error
	// ApplicationTime feeds the master the application's monotonic time,
	// nanoseconds.
	ApplicationTime(ns uint64)
	// SyncSlaveClocks queues the datagram that drags slave clocks toward
	// the reference.
	SyncSlaveClocks()
	// Receive fetches frames from the bus and dispatches datagrams.
	Receive()
	// Send transmits all queued datagrams.
	Send()
	// Activate finishes configuration and brings the bus up.
	Activate() error
	// Release shuts the master down and invalidates all handles.
	Release()
}
