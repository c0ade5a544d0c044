// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package motor

import (
	"time"

	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/adapter"
	"github.com/phi-robotics/motorlink/pkg/ecat"
)

// DefaultBarrierDelay is how long the group waits after the last axis
// reaches operation enabled before motion starts.
const DefaultBarrierDelay = time.Second

// Initialization parameters written to every drive over service data
// during bootstrap. Failures there are warnings, not fatal.
const (
	interpPeriodExponent  = -3 // 0x60C2:2, 10^-3 seconds base
	profileVelocityLimit  = 100000
	profileAccelLimit     = 50000
	profileDecelLimit     = 50000
	dcAssignActivate      = 0x0300
)

// Config parameterizes a Controller.
type Config struct {
	// ENIPath names a network information file. Empty means enumerate the
	// bus instead.
	ENIPath string
	// CycleUS is the cycle period in microseconds; Tick must be called at
	// exactly this period. Required.
	CycleUS uint32
	// Master is the fieldbus master to drive. Required.
	Master ecat.Master
	// Registry resolves adapters by identity. Nil means the built-in set.
	Registry *adapter.Registry
	// Fallback is used for identities the registry does not recognize.
	// Nil makes an unrecognized identity a configuration error.
	Fallback adapter.Adapter
	// BarrierDelay overrides DefaultBarrierDelay when positive.
	BarrierDelay time.Duration
	// Logger receives bootstrap and rare cycle events. Nil means no-op.
	Logger *zap.Logger
	// Observer, when set, sees every cycle's axis snapshots.
	Observer Observer
	// Now overrides the monotonic clock. Test hook.
	Now func() uint64
}

// AxisDiag is one axis's diagnostic snapshot, taken once per cycle.
type AxisDiag struct {
	Status        uint16
	ModeDisplay   int8
	Target        int32
	Actual        int32
	FollowingErr  int32
	ErrorCode     uint16
	ServoError    uint16
	DigitalInputs uint32
	ProbeStatus   uint16
	ProbePos      int32
	ServoEnabled  bool
}

// Observer receives the per-cycle snapshot. The slice is reused between
// cycles; implementations must copy what they keep and must not block.
type Observer interface {
	ObserveCycle(cycle uint64, timeNs uint64, axes []AxisDiag)
}
