// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

// Package trace records per-cycle controller telemetry as a stream of CBOR
// frames. The format is compact enough to leave recording on for long runs
// and machine-readable for later analysis, unlike a printf debug stream.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/phi-robotics/motorlink/pkg/motor"
)

// AxisFrame is one axis's slice of a frame. Integer keys keep the encoded
// frames small.
type AxisFrame struct {
	Status       uint16 `cbor:"1,keyasint"`
	Target       int32  `cbor:"2,keyasint"`
	Actual       int32  `cbor:"3,keyasint"`
	Mode         int8   `cbor:"4,keyasint"`
	FollowingErr int32  `cbor:"5,keyasint,omitempty"`
	ErrorCode    uint16 `cbor:"6,keyasint,omitempty"`
	ServoError   uint16 `cbor:"7,keyasint,omitempty"`
	Enabled      bool   `cbor:"8,keyasint"`
}

// Frame is one controller cycle.
type Frame struct {
	Cycle  uint64      `cbor:"1,keyasint"`
	TimeNs uint64      `cbor:"2,keyasint"`
	Axes   []AxisFrame `cbor:"3,keyasint"`
}

var _ motor.Observer = (*Recorder)(nil)

// Recorder encodes frames onto a writer. It implements motor.Observer so
// it can be handed straight to the controller config.
type Recorder struct {
	mu   sync.Mutex
	enc  *cbor.Encoder
	buf  *bufio.Writer
	file *os.File
	err  error

	axes []AxisFrame // reused between cycles
}

// NewRecorder wraps a writer. The caller owns the writer's lifetime.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: cbor.NewEncoder(w)}
}

// Create opens path for writing and returns a buffered recorder over it.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	r := NewRecorder(buf)
	r.buf = buf
	r.file = f
	return r, nil
}

// ObserveCycle implements motor.Observer.
func (r *Recorder) ObserveCycle(cycle uint64, timeNs uint64, axes []motor.AxisDiag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if cap(r.axes) < len(axes) {
		r.axes = make([]AxisFrame, len(axes))
	}
	r.axes = r.axes[:len(axes)]
	for i, a := range axes {
		r.axes[i] = AxisFrame{
			Status:       a.Status,
			Target:       a.Target,
			Actual:       a.Actual,
			Mode:         a.ModeDisplay,
			FollowingErr: a.FollowingErr,
			ErrorCode:    a.ErrorCode,
			ServoError:   a.ServoError,
			Enabled:      a.ServoEnabled,
		}
	}
	// The first failed encode latches; recording quietly stops rather than
	// disturbing the cycle loop.
	r.err = r.enc.Encode(Frame{Cycle: cycle, TimeNs: timeNs, Axes: r.axes})
}

// Err returns the first encoding error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes and closes a file-backed recorder.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf != nil {
		if err := r.buf.Flush(); err != nil && r.err == nil {
			r.err = err
		}
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && r.err == nil {
			r.err = err
		}
		r.file = nil
	}
	return r.err
}

// ReadAll decodes every frame from a recorded stream.
func ReadAll(rd io.Reader) ([]Frame, error) {
	dec := cbor.NewDecoder(rd)
	var frames []Frame
	for {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			if err == io.EOF {
				return frames, nil
			}
			return frames, fmt.Errorf("trace: decode frame %d: %w", len(frames), err)
		}
		frames = append(frames, f)
	}
}
