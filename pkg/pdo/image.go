// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package pdo

import "encoding/binary"

// Process-image accessors. All process data is little-endian on the wire
// regardless of host order; every read and write goes through these helpers
// so the controller never performs a host-typed load against the image.

// ReadU8 reads an unsigned byte at off.
func ReadU8(pi []byte, off uint32) uint8 {
	return pi[off]
}

// ReadS8 reads a signed byte at off.
func ReadS8(pi []byte, off uint32) int8 {
	return int8(pi[off])
}

// ReadU16 reads a little-endian unsigned 16-bit value at off.
func ReadU16(pi []byte, off uint32) uint16 {
	return binary.LittleEndian.Uint16(pi[off:])
}

// ReadS16 reads a little-endian signed 16-bit value at off.
func ReadS16(pi []byte, off uint32) int16 {
	return int16(binary.LittleEndian.Uint16(pi[off:]))
}

// ReadU32 reads a little-endian unsigned 32-bit value at off.
func ReadU32(pi []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(pi[off:])
}

// ReadS32 reads a little-endian signed 32-bit value at off.
func ReadS32(pi []byte, off uint32) int32 {
	return int32(binary.LittleEndian.Uint32(pi[off:]))
}

// WriteU8 writes an unsigned byte at off.
func WriteU8(pi []byte, off uint32, v uint8) {
	pi[off] = v
}

// WriteS8 writes a signed byte at off.
func WriteS8(pi []byte, off uint32, v int8) {
	pi[off] = byte(v)
}

// WriteU16 writes v little-endian at off.
func WriteU16(pi []byte, off uint32, v uint16) {
	binary.LittleEndian.PutUint16(pi[off:], v)
}

// WriteS16 writes v little-endian at off.
func WriteS16(pi []byte, off uint32, v int16) {
	binary.LittleEndian.PutUint16(pi[off:], uint16(v))
}

// WriteU32 writes v little-endian at off.
func WriteU32(pi []byte, off uint32, v uint32) {
	binary.LittleEndian.PutUint32(pi[off:], v)
}

// WriteS32 writes v little-endian at off.
func WriteS32(pi []byte, off uint32, v int32) {
	binary.LittleEndian.PutUint32(pi[off:], uint32(v))
}
