// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package directory holds the point-in-time snapshot of which MQ objects
// live on which hosts and queue managers, and the hostname allow-list gate
// that keeps commands off production systems.
package directory

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Object types as they appear in the snapshot.
const (
	TypeLocal   = "QLOCAL"
	TypeAlias   = "QALIAS"
	TypeRemote  = "QREMOTE"
	TypeModel   = "QMODEL"
	TypeChannel = "CHANNEL"

	// TypeQueues is a pseudo-type that matches any queue-like object.
	TypeQueues = "QUEUES"
)

// queueTypes is the expansion of the QUEUES pseudo-type.
var queueTypes = map[string]bool{
	TypeLocal:  true,
	TypeRemote: true,
	TypeModel:  true,
	TypeAlias:  true,
}

// Entry is one row of the snapshot table.
//
// Description:
//
//	Rows are immutable once loaded. ExtractedAt is kept as the raw text
//	from the snapshot; it is advisory only and participates in substring
//	search like every other column.
type Entry struct {
	ExtractedAt  string
	Hostname     string
	QueueManager string
	ObjectType   string
	Definition   string
}

// Outcome classifies a directory search result.
type Outcome string

const (
	// OutcomeFound means at least one row matched the query and filter.
	OutcomeFound Outcome = "found"

	// OutcomeNotFound means no row matched the query at all.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeTypeMismatch means rows matched the query but none matched
	// the requested object type. FoundTypes carries what was there.
	OutcomeTypeMismatch Outcome = "type_mismatch"
)

// SearchResult is the output of one Index.Search call.
type SearchResult struct {
	Query   string
	Filter  string
	Outcome Outcome

	// Entries are the matching rows, deduplicated on
	// (hostname, queue manager, object type). Only set for OutcomeFound.
	Entries []Entry

	// FoundTypes lists the distinct object types present among the
	// substring matches. Only set for OutcomeTypeMismatch.
	FoundTypes []string
}

// Index is the read-only snapshot lookup table.
//
// Description:
//
//	The backing file is read at most once per process; a missing file
//	degrades to an empty table rather than an error. After load the
//	table is never mutated, so any number of resolvers may search it
//	concurrently.
//
// Thread Safety: Index is safe for concurrent use after construction.
type Index struct {
	path     string
	loadOnce sync.Once
	entries  []Entry
}

// NewIndex creates an Index backed by the snapshot file at path. The file
// is not read until the first search.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// NewStaticIndex creates a pre-loaded Index from in-memory entries.
func NewStaticIndex(entries []Entry) *Index {
	ix := &Index{}
	ix.loadOnce.Do(func() { ix.entries = entries })
	return ix
}

// Entries returns every row in the snapshot, loading the backing file on
// first call.
func (ix *Index) Entries() []Entry {
	ix.loadOnce.Do(ix.loadFromDisk)
	return ix.entries
}

// loadFromDisk parses the pipe-delimited snapshot file.
//
// Format: a header line "extractedat|hostname|qmname|objecttype|objectdef"
// followed by one row per object. Malformed rows are skipped. The object
// definition keeps any embedded pipes by splitting at most five fields.
func (ix *Index) loadFromDisk() {
	if ix.path == "" {
		return
	}

	f, err := os.Open(ix.path)
	if err != nil {
		slog.Warn("Snapshot file not found, directory is empty", "path", ix.path, "error", err)
		return
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.HasPrefix(strings.ToLower(line), "extractedat") {
				continue
			}
		}

		fields := strings.SplitN(line, "|", 5)
		if len(fields) < 5 {
			slog.Warn("Skipping malformed snapshot row", "line", line)
			continue
		}
		entries = append(entries, Entry{
			ExtractedAt:  strings.TrimSpace(fields[0]),
			Hostname:     strings.TrimSpace(fields[1]),
			QueueManager: strings.TrimSpace(fields[2]),
			ObjectType:   strings.ToUpper(strings.TrimSpace(fields[3])),
			Definition:   strings.TrimSpace(fields[4]),
		})
	}
	if err := scanner.Err(); err != nil {
		slog.Error("Reading snapshot file", "path", ix.path, "error", err)
	}

	slog.Info("Snapshot loaded", "path", ix.path, "rows", len(entries))
	ix.entries = entries
}

// InferType guesses an object type from a name's structural prefix.
//
// Description:
//
//	Fleet naming convention: QL. prefixes local queues, QA. alias
//	queues, QR. remote queues. Returns "" when the name follows none of
//	the conventions.
func InferType(name string) string {
	switch {
	case strings.HasPrefix(strings.ToUpper(name), "QL."):
		return TypeLocal
	case strings.HasPrefix(strings.ToUpper(name), "QA."):
		return TypeAlias
	case strings.HasPrefix(strings.ToUpper(name), "QR."):
		return TypeRemote
	default:
		return ""
	}
}

// Search finds snapshot rows matching a substring, optionally constrained
// to one object type.
//
// Description:
//
//	The substring is matched case-insensitively across every column of
//	every row. When typeFilter is empty, one is inferred from the query
//	string's prefix convention; the pseudo-type QUEUES matches any
//	queue-like object. Matches are deduplicated on (hostname, queue
//	manager, object type). When the filter eliminates every substring
//	match the result reports the types actually present, so the caller
//	can explain the mismatch instead of claiming the object is missing.
//
// Inputs:
//   - substring: The text to look for (e.g. a queue name).
//   - typeFilter: Optional object type; "" means infer from the query.
//
// Outputs:
//   - SearchResult: Outcome plus matching entries or found types.
//
// Thread Safety: Safe for concurrent use.
func (ix *Index) Search(substring, typeFilter string) SearchResult {
	result := SearchResult{Query: substring}

	needle := strings.ToLower(substring)
	var matched []Entry
	for _, e := range ix.Entries() {
		if entryContains(e, needle) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		result.Outcome = OutcomeNotFound
		return result
	}

	filter := strings.ToUpper(strings.TrimSpace(typeFilter))
	if filter == "" {
		filter = InferType(substring)
	}
	result.Filter = filter

	filtered := matched
	if filter != "" {
		filtered = nil
		for _, e := range matched {
			if filter == TypeQueues {
				if queueTypes[e.ObjectType] {
					filtered = append(filtered, e)
				}
			} else if e.ObjectType == filter {
				filtered = append(filtered, e)
			}
		}
	}

	if len(filtered) == 0 {
		result.Outcome = OutcomeTypeMismatch
		result.FoundTypes = distinctTypes(matched)
		return result
	}

	result.Outcome = OutcomeFound
	result.Entries = dedupe(filtered)
	return result
}

func entryContains(e Entry, needle string) bool {
	for _, col := range []string{e.ExtractedAt, e.Hostname, e.QueueManager, e.ObjectType, e.Definition} {
		if strings.Contains(strings.ToLower(col), needle) {
			return true
		}
	}
	return false
}

func distinctTypes(entries []Entry) []string {
	seen := make(map[string]bool)
	var types []string
	for _, e := range entries {
		if !seen[e.ObjectType] {
			seen[e.ObjectType] = true
			types = append(types, e.ObjectType)
		}
	}
	return types
}

func dedupe(entries []Entry) []Entry {
	type key struct{ host, qmgr, typ string }
	seen := make(map[key]bool)
	var out []Entry
	for _, e := range entries {
		k := key{e.Hostname, e.QueueManager, e.ObjectType}
		if !seen[k] {
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}
