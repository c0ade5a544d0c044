// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package motor

import "errors"

// Error classes mirroring the bus-library surface. Bootstrap failures wrap
// one of these; the cyclic pipeline never propagates errors at all.
var (
	// ErrInit covers master/domain acquisition, activation and
	// process-image retrieval failures.
	ErrInit = errors.New("init failed")
	// ErrConfig covers PDO programming, domain registration, zero parsed
	// slaves, and unrecognized identities with no fallback.
	ErrConfig = errors.New("configuration failed")
	// ErrParam covers invalid handles, axis indices and cycle periods.
	ErrParam = errors.New("invalid parameter")
	// ErrRuntime covers transient errors inside otherwise well-formed
	// input; callers skip and continue.
	ErrRuntime = errors.New("runtime error")
	// ErrIO covers unreadable or truncated network information files.
	ErrIO = errors.New("i/o error")
)
