// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package adapter

// Identity-only adapters for drives that behave per the standard profile.
// They reuse the standard layout and step wholesale.

var (
	_ Adapter = (*Delta)(nil)
	_ Adapter = (*Yaskawa)(nil)
	_ Adapter = (*Panasonic)(nil)
)

// Delta drives Delta ASDA-series servos.
type Delta struct {
	Standard
}

// NewDelta returns the Delta adapter.
func NewDelta() *Delta { return &Delta{} }

func (d *Delta) MotorInfo() MotorIdentity {
	return MotorIdentity{
		VendorID:    0x00000001,
		ProductCode: 0x12345678,
		Name:        "Delta Servo Motor",
		HasDC:       true,
		Position:    -1,
	}
}

func (d *Delta) Supports(vendorID, productCode uint32) bool {
	return vendorID == 0x00000001 && productCode == 0x12345678
}

func (d *Delta) Name() string { return "Delta" }

// Yaskawa drives Yaskawa Sigma-series servos.
type Yaskawa struct {
	Standard
}

// NewYaskawa returns the Yaskawa adapter.
func NewYaskawa() *Yaskawa { return &Yaskawa{} }

func (y *Yaskawa) MotorInfo() MotorIdentity {
	return MotorIdentity{
		VendorID:    0x00000002,
		ProductCode: 0x87654321,
		Name:        "Yaskawa Servo Motor",
		HasDC:       true,
		Position:    -1,
	}
}

func (y *Yaskawa) Supports(vendorID, productCode uint32) bool {
	return vendorID == 0x00000002 && productCode == 0x87654321
}

func (y *Yaskawa) Name() string { return "Yaskawa" }

// Panasonic drives Panasonic MINAS-series servos.
type Panasonic struct {
	Standard
}

// NewPanasonic returns the Panasonic adapter.
func NewPanasonic() *Panasonic { return &Panasonic{} }

func (p *Panasonic) MotorInfo() MotorIdentity {
	return MotorIdentity{
		VendorID:    0x00000003,
		ProductCode: 0x11223344,
		Name:        "Panasonic Servo Motor",
		HasDC:       true,
		Position:    -1,
	}
}

func (p *Panasonic) Supports(vendorID, productCode uint32) bool {
	return vendorID == 0x00000003 && productCode == 0x11223344
}

func (p *Panasonic) Name() string { return "Panasonic" }
