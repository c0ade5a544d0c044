// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package eni

import (
	"strings"

	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/pdo"
)

// parseXML scans the XML form without a schema-bound decoder: the files in
// the field disagree on element case, attribute-versus-child placement and
// integer encodings, so a strict unmarshal would reject most of them. The
// scanner works on a pre-lowercased shadow of the content and slices values
// out of the original.
func parseXML(content, lower string, log *zap.Logger) []Slave {
	var slaves []Slave

	beg, end := 0, len(content)
	if i := strings.Index(lower, "<slavelist"); i >= 0 {
		beg = i
		if j := strings.Index(lower[i:], "</slavelist>"); j >= 0 {
			end = i + j
		}
	}

	elem := "slave"
	if !hasOpenTag(lower, "slave", beg, end) {
		// ESI-style EtherCATInfo: one <Device> per slave.
		elem = "device"
		beg, end = 0, len(content)
	}

	pos := beg
	for {
		tagStart, openEnd, regionEnd, ok := elemRegion(lower, elem, pos, end)
		if !ok {
			break
		}

		s := Slave{Position: uint16(len(slaves))}
		if v, ok := intFieldDeep(content, lower, tagStart, openEnd, regionEnd, "position"); ok {
			s.Position = uint16(v)
		}
		if v, ok := intFieldDeep(content, lower, tagStart, openEnd, regionEnd, "vendorid"); ok {
			s.VendorID = v
		}
		if v, ok := intFieldDeep(content, lower, tagStart, openEnd, regionEnd, "productcode"); ok {
			s.ProductCode = v
		}
		if v, ok := intFieldDeep(content, lower, tagStart, openEnd, regionEnd, "revisionno"); ok {
			s.Revision = v
		}
		if v, ok := intFieldDeep(content, lower, tagStart, openEnd, regionEnd, "serialno"); ok {
			s.Serial = v
		}
		if name, ok := childValue(content, lower, openEnd, regionEnd, "name"); ok {
			s.Name = strings.TrimSpace(name)
		}
		s.HasDC = hasOpenTag(lower, "dc", openEnd, regionEnd) ||
			hasOpenTag(lower, "dcsyncmode", openEnd, regionEnd)

		s.RxPdos, s.TxPdos = scanPdos(content, lower, openEnd, regionEnd)

		applyDefaults(&s, log)
		slaves = append(slaves, s)
		pos = regionEnd
	}
	return slaves
}

// scanPdos collects <RxPdo>, <TxPdo> and generic <Pdo> elements in a region.
// A generic PDO is classified by its index: 0x1A00 and above is Tx.
func scanPdos(content, lower string, beg, end int) (rx, tx []pdo.Pdo) {
	pos := beg
	for {
		rb, _, _, rok := elemRegion(lower, "rxpdo", pos, end)
		tb, _, _, tok := elemRegion(lower, "txpdo", pos, end)
		gb, _, _, gok := elemRegion(lower, "pdo", pos, end)

		kind := -1
		best := end
		if rok && rb < best {
			kind, best = 0, rb
		}
		if tok && tb < best {
			kind, best = 1, tb
		}
		if gok && gb < best {
			kind, best = 2, gb
		}
		if kind < 0 {
			break
		}

		var tagStart, openEnd, regionEnd int
		switch kind {
		case 0:
			tagStart, openEnd, regionEnd, _ = elemRegion(lower, "rxpdo", best, end)
		case 1:
			tagStart, openEnd, regionEnd, _ = elemRegion(lower, "txpdo", best, end)
		default:
			tagStart, openEnd, regionEnd, _ = elemRegion(lower, "pdo", best, end)
		}

		p := pdo.Pdo{}
		if v, ok := intField(content, lower, tagStart, openEnd, regionEnd, "index"); ok {
			p.Index = uint16(v)
		}
		p.Entries = scanEntries(content, lower, openEnd, regionEnd)

		isTx := kind == 1 || (kind == 2 && p.Index >= pdo.TxPdoBase)
		if isTx {
			tx = append(tx, p)
		} else {
			rx = append(rx, p)
		}
		pos = regionEnd
	}
	return rx, tx
}

func scanEntries(content, lower string, beg, end int) []pdo.Entry {
	var entries []pdo.Entry
	pos := beg
	for {
		tagStart, openEnd, regionEnd, ok := elemRegion(lower, "entry", pos, end)
		if !ok {
			break
		}
		var e pdo.Entry
		if v, ok := intField(content, lower, tagStart, openEnd, regionEnd, "index"); ok {
			e.Index = uint16(v)
		}
		if v, ok := intField(content, lower, tagStart, openEnd, regionEnd, "subindex"); ok {
			e.Sub = uint8(v)
		}
		if v, ok := intField(content, lower, tagStart, openEnd, regionEnd, "bitlen"); ok {
			e.BitLen = uint8(v)
		}
		entries = append(entries, e)
		pos = regionEnd
	}
	return entries
}

// intField reads an integer from a child element first, then from an
// attribute on the open tag. A malformed value is skipped, not fatal.
func intField(content, lower string, tagStart, openEnd, regionEnd int, name string) (uint32, bool) {
	if raw, ok := childValue(content, lower, openEnd, regionEnd, name); ok {
		if v, err := ParseUint(raw); err == nil {
			return v, true
		}
	}
	if raw, ok := attrValue(content, lower, tagStart, openEnd, name); ok {
		if v, err := ParseUint(raw); err == nil {
			return v, true
		}
	}
	return 0, false
}

// intFieldDeep additionally searches attributes anywhere inside the
// element's region: ESI exporters hang identity attributes off nested
// children (e.g. <Type ProductCode="#x...">). Used for slave-level fields
// only; PDO and entry fields stay local to avoid cross-talk between
// sibling elements.
func intFieldDeep(content, lower string, tagStart, openEnd, regionEnd int, name string) (uint32, bool) {
	if v, ok := intField(content, lower, tagStart, openEnd, regionEnd, name); ok {
		return v, true
	}
	if raw, ok := attrValue(content, lower, openEnd, regionEnd, name); ok {
		if v, err := ParseUint(raw); err == nil {
			return v, true
		}
	}
	return 0, false
}

// openTag finds "<name" at a word boundary within [from,end).
func openTag(lower, name string, from, end int) (tagStart, tagEnd int, ok bool) {
	needle := "<" + name
	for i := from; i < end; {
		j := strings.Index(lower[i:end], needle)
		if j < 0 {
			return 0, 0, false
		}
		tagStart = i + j
		after := tagStart + len(needle)
		if after < end && isNameChar(lower[after]) {
			i = after
			continue
		}
		gt := strings.IndexByte(lower[tagStart:end], '>')
		if gt < 0 {
			return 0, 0, false
		}
		return tagStart, tagStart + gt + 1, true
	}
	return 0, 0, false
}

func hasOpenTag(lower, name string, from, end int) bool {
	_, _, ok := openTag(lower, name, from, end)
	return ok
}

// elemRegion locates an element and its extent: up to the matching close
// tag, or to the next sibling open tag when the close is missing.
func elemRegion(lower, name string, from, end int) (tagStart, openEnd, regionEnd int, ok bool) {
	tagStart, openEnd, ok = openTag(lower, name, from, end)
	if !ok {
		return 0, 0, 0, false
	}
	// Self-closing tag.
	if openEnd >= 2 && lower[openEnd-2] == '/' {
		return tagStart, openEnd, openEnd, true
	}
	close := "</" + name + ">"
	if j := strings.Index(lower[openEnd:end], close); j >= 0 {
		return tagStart, openEnd, openEnd + j + len(close), true
	}
	if next, _, found := openTag(lower, name, openEnd, end); found {
		return tagStart, openEnd, next, true
	}
	return tagStart, openEnd, end, true
}

// childValue returns the text of the first <name>...</name> child in the
// region.
func childValue(content, lower string, from, end int, name string) (string, bool) {
	tagStart, openEnd, ok := openTag(lower, name, from, end)
	if !ok || tagStart >= end {
		return "", false
	}
	close := "</" + name + ">"
	j := strings.Index(lower[openEnd:end], close)
	if j < 0 {
		return "", false
	}
	return content[openEnd : openEnd+j], true
}

// attrValue returns the value of name="..." inside an open tag.
func attrValue(content, lower string, tagStart, tagEnd int, name string) (string, bool) {
	region := lower[tagStart:tagEnd]
	for i := 0; i < len(region); {
		j := strings.Index(region[i:], name)
		if j < 0 {
			return "", false
		}
		k := i + j
		if k > 0 && isNameChar(region[k-1]) {
			i = k + len(name)
			continue
		}
		rest := k + len(name)
		for rest < len(region) && region[rest] == ' ' {
			rest++
		}
		if rest >= len(region) || region[rest] != '=' {
			i = k + len(name)
			continue
		}
		rest++
		for rest < len(region) && (region[rest] == ' ' || region[rest] == '"' || region[rest] == '\'') {
			rest++
		}
		stop := rest
		for stop < len(region) && !strings.ContainsRune(" \"'>/", rune(region[stop])) {
			stop++
		}
		return content[tagStart+rest : tagStart+stop], true
	}
	return "", false
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
