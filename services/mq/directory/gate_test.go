// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package directory

import (
	"strings"
	"testing"
)

func TestGate_Allowed(t *testing.T) {
	gate := NewGate([]string{"lod", "loq", "lot"})

	tests := []struct {
		hostname string
		want     bool
	}{
		{"lodalhost", true},
		{"loqalhost", true},
		{"lotalhost", true},
		{"LODALHOST", true},
		{"  lodalhost  ", true},
		{"lopalhost", false},
		{"prodhost01", false},
		{"", false},
	}
	for _, tt := range tests {
		got, reason := gate.Allowed(tt.hostname)
		if got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.hostname, got, tt.want)
		}
		if got && reason != "" {
			t.Errorf("Allowed(%q) returned reason %q for an allowed host", tt.hostname, reason)
		}
		if !got && !strings.Contains(reason, "restricted") {
			t.Errorf("Allowed(%q) reason = %q, want restriction message", tt.hostname, reason)
		}
	}
}

func TestGate_OrderIndependent(t *testing.T) {
	a := NewGate([]string{"lod", "loq", "lot"})
	b := NewGate([]string{"lot", "lod", "loq"})

	for _, h := range []string{"lodalhost", "loqalhost", "lotalhost", "lopalhost", "prod01"} {
		gotA, _ := a.Allowed(h)
		gotB, _ := b.Allowed(h)
		if gotA != gotB {
			t.Errorf("Allowed(%q) differs with prefix ordering: %v vs %v", h, gotA, gotB)
		}
	}
}

func TestGate_Deterministic(t *testing.T) {
	gate := NewGate([]string{"lod"})
	first, _ := gate.Allowed("lodalhost")
	for i := 0; i < 5; i++ {
		if got, _ := gate.Allowed("lodalhost"); got != first {
			t.Fatal("Allowed is not deterministic")
		}
	}
}

func TestNewGateFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("MQ_ALLOWED_HOSTNAME_PREFIXES", "")
		gate := NewGateFromEnv()
		if ok, _ := gate.Allowed("lodalhost"); !ok {
			t.Error("default prefixes should allow lodalhost")
		}
		if ok, _ := gate.Allowed("lopalhost"); ok {
			t.Error("default prefixes should block lopalhost")
		}
	})

	t.Run("custom", func(t *testing.T) {
		t.Setenv("MQ_ALLOWED_HOSTNAME_PREFIXES", "dev, staging")
		gate := NewGateFromEnv()
		if ok, _ := gate.Allowed("staging-mq-01"); !ok {
			t.Error("custom prefix should allow staging hosts")
		}
		if ok, _ := gate.Allowed("lodalhost"); ok {
			t.Error("custom prefixes should replace the defaults")
		}
	})
}

func TestGate_EmptyPrefixesIgnored(t *testing.T) {
	gate := NewGate([]string{"", " ", "lod"})
	// An empty prefix would allow everything; it must be dropped.
	if ok, _ := gate.Allowed("prodhost"); ok {
		t.Error("empty prefix should not allow arbitrary hosts")
	}
	if len(gate.Prefixes()) != 1 {
		t.Errorf("Prefixes() = %v, want just [lod]", gate.Prefixes())
	}
}
