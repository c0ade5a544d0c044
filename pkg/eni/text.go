// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package eni

import (
	"strings"

	"go.uber.org/zap"
)

// parseText reads the sentinel-block text dump:
//
//	=== Master 0, Slave 2 ===
//	  Vendor Id:       0x00001097
//	  Product code:    0x00002406
//	  Revision number: 0x00000001
//	  Serial number:   0x00000000
//	  Device name:     SV660N
//	  Distributed clocks: yes
//
// Blocks without an identity fall back to the documented defaults.
func parseText(content string, log *zap.Logger) []Slave {
	var slaves []Slave
	var cur *Slave

	flush := func() {
		if cur == nil {
			return
		}
		applyDefaults(cur, log)
		slaves = append(slaves, *cur)
		cur = nil
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		if pos, ok := parseSentinel(trimmed); ok {
			flush()
			cur = &Slave{Position: pos}
			continue
		}
		if cur == nil {
			continue
		}

		key, value, ok := splitKeyValue(trimmed)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "vendor id":
			if v, err := ParseUint(value); err == nil {
				cur.VendorID = v
			}
		case "product code":
			if v, err := ParseUint(value); err == nil {
				cur.ProductCode = v
			}
		case "revision number":
			if v, err := ParseUint(value); err == nil {
				cur.Revision = v
			}
		case "serial number":
			if v, err := ParseUint(value); err == nil {
				cur.Serial = v
			}
		case "device name":
			cur.Name = value
		case "distributed clocks":
			cur.HasDC = strings.EqualFold(value, "yes")
		}
	}
	flush()
	return slaves
}

// parseSentinel matches "=== Master <M>, Slave <S> ===" and returns S.
func parseSentinel(line string) (uint16, bool) {
	if !strings.HasPrefix(line, "=== Master") {
		return 0, false
	}
	i := strings.Index(line, "Slave ")
	if i < 0 {
		return 0, false
	}
	rest := line[i+len("Slave "):]
	end := strings.Index(rest, " ===")
	if end < 0 {
		return 0, false
	}
	v, err := ParseUint(rest[:end])
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

func splitKeyValue(line string) (key, value string, ok bool) {
	i := strings.Index(line, ":")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}
