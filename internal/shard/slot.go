// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package shard

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	slotPattern     = regexp.MustCompile(`(?i)^A(\d+)$`)
	accountsPattern = regexp.MustCompile(`(?i)^/api/accounts/(A\d+)(?:/|$)`)
)

// ParseSlot extracts the number from a slot string such as "A37".
func ParseSlot(slot string) (int, bool) {
	m := slotPattern.FindStringSubmatch(strings.TrimSpace(slot))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// digits too long for int
		return 0, false
	}
	return n, true
}

// SlotFromPath returns the slot segment of an /api/accounts/<slot>/... path.
func SlotFromPath(path string) string {
	m := accountsPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// SlotFromBody looks for slot, boundSlot, then role.boundSlot in a decoded
// JSON object.
func SlotFromBody(body map[string]any) string {
	if body == nil {
		return ""
	}
	if s := stringField(body, "slot"); s != "" {
		return s
	}
	if s := stringField(body, "boundSlot"); s != "" {
		return s
	}
	if role, ok := body["role"].(map[string]any); ok {
		return stringField(role, "boundSlot")
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
