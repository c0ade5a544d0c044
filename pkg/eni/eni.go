// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

// Package eni reads Network Information files describing the slaves on a
// fieldbus segment. Two concrete forms are accepted: the text dump emitted
// by master diagnostic tools ("=== Master 0, Slave 2 ===" sentinel blocks)
// and the XML form rooted at <EtherCATInfo> or carrying a <SlaveList>.
//
// Real-world ENI files are messy: element and attribute names change case
// between exporters, values sit in attributes or child elements, and
// integers arrive as decimal, 0x-, x- or #x-prefixed hex. The parser is
// deliberately tolerant of all of that; a malformed field is skipped, a
// malformed file yields zero slaves.
package eni

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/pdo"
)

// Defaults substituted when a slave omits its identity. Never zero, so a
// parsed slave can always be matched against an adapter.
const (
	DefaultVendorID    = 0x000116c7
	DefaultProductCode = 0x003e0402
)

// ErrNoSlaves is returned when a readable file yields no slave entries.
var ErrNoSlaves = errors.New("eni: no slaves found")

// Slave is one discovered bus participant with its optional PDO layout.
type Slave struct {
	Position    uint16
	VendorID    uint32
	ProductCode uint32
	Revision    uint32
	Serial      uint32
	Name        string
	HasDC       bool
	RxPdos      []pdo.Pdo
	TxPdos      []pdo.Pdo
}

// HasPdoLayout reports whether the file supplied an explicit mapping for
// this slave.
func (s *Slave) HasPdoLayout() bool {
	return len(s.RxPdos) > 0 || len(s.TxPdos) > 0
}

// ParseFile reads and parses an ENI file.
func ParseFile(path string, log *zap.Logger) ([]Slave, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eni: open %s: %w", path, err)
	}
	return Parse(string(raw), log)
}

// Parse parses ENI content in either accepted form.
func Parse(content string, log *zap.Logger) ([]Slave, error) {
	if log == nil {
		log = zap.NewNop()
	}
	lower := strings.ToLower(content)

	var slaves []Slave
	if strings.Contains(lower, "<slavelist") || strings.Contains(lower, "<ethercatinfo") {
		slaves = parseXML(content, lower, log)
	} else {
		slaves = parseText(content, log)
	}
	if len(slaves) == 0 {
		return nil, ErrNoSlaves
	}
	return slaves, nil
}

// applyDefaults fills a missing identity and logs once per substitution.
func applyDefaults(s *Slave, log *zap.Logger) {
	if s.VendorID == 0 {
		s.VendorID = DefaultVendorID
		log.Warn("eni: slave missing vendor id, using default",
			zap.Uint16("position", s.Position),
			zap.Uint32("vendor_id", DefaultVendorID))
	}
	if s.ProductCode == 0 {
		s.ProductCode = DefaultProductCode
		log.Warn("eni: slave missing product code, using default",
			zap.Uint16("position", s.Position),
			zap.Uint32("product_code", DefaultProductCode))
	}
}
