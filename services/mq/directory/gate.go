// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package directory

import (
	"fmt"
	"os"
	"strings"
)

// defaultAllowedPrefixes covers the dev, QA, and test hostname ranges.
// Production hosts never match these prefixes.
const defaultAllowedPrefixes = "lod,loq,lot"

// Gate is the hostname allow-list check.
//
// Description:
//
//	A hostname passes iff it case-insensitively starts with one of the
//	configured prefixes. The gate is a pure function of the hostname and
//	the fixed prefix list: no network calls, no mutable state. It is
//	checked twice on every command path, once while partitioning
//	directory search results and again immediately before dispatch, so
//	skipping the search step cannot bypass it.
//
// Thread Safety: Gate is immutable after construction and safe for
// concurrent use.
type Gate struct {
	prefixes []string
}

// NewGate creates a Gate from an explicit prefix list. Prefixes are
// trimmed and compared case-insensitively.
func NewGate(prefixes []string) *Gate {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &Gate{prefixes: cleaned}
}

// NewGateFromEnv creates a Gate from MQ_ALLOWED_HOSTNAME_PREFIXES, a
// comma-separated prefix list. Unset falls back to the dev/QA/test set.
func NewGateFromEnv() *Gate {
	raw := os.Getenv("MQ_ALLOWED_HOSTNAME_PREFIXES")
	if raw == "" {
		raw = defaultAllowedPrefixes
	}
	return NewGate(strings.Split(raw, ","))
}

// Prefixes returns the configured allow-list prefixes.
func (g *Gate) Prefixes() []string {
	return g.prefixes
}

// Allowed reports whether a hostname passes the allow-list.
//
// Inputs:
//   - hostname: The host to classify. Leading/trailing whitespace and
//     case are ignored.
//
// Outputs:
//   - bool: True when the hostname starts with an allowed prefix.
//   - string: Empty when allowed; otherwise a user-facing reason.
func (g *Gate) Allowed(hostname string) (bool, string) {
	h := strings.ToLower(strings.TrimSpace(hostname))
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(h, prefix) {
			return true, ""
		}
	}
	reason := fmt.Sprintf(
		"Access to this system is restricted for safety. This query targets hostname '%s' which is not in the allowed list.",
		hostname)
	return false, reason
}
