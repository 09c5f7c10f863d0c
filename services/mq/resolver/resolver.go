// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolver is the deterministic entity-resolution workflow: given
// a queue name it finds every queue manager hosting it, enforces the
// hostname allow-list, chases alias indirection one hop, and fans the
// follow-up command out across every qualifying manager.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/queueworks/mqassist/services/mq/directory"
)

// Intent is what the caller wants to know about a queue.
type Intent string

const (
	// IntentDepth asks for the current message count.
	IntentDepth Intent = "depth"

	// IntentStatus asks for the queue's runtime status.
	IntentStatus Intent = "status"

	// IntentExistence asks only where the queue lives.
	IntentExistence Intent = "existence"
)

// Outcome classifies one resolution.
type Outcome string

const (
	// OutcomeResolved means every matching host was allowed and the
	// follow-up commands (if any) were dispatched.
	OutcomeResolved Outcome = "resolved"

	// OutcomeNotFound means the directory has no match at all.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeRestricted means matches exist but every host failed the
	// allow-list. This is never collapsed into not-found.
	OutcomeRestricted Outcome = "restricted"

	// OutcomePartiallyRestricted means some hosts were allowed and some
	// were blocked; both sets are surfaced together.
	OutcomePartiallyRestricted Outcome = "partially_restricted"

	// OutcomeAmbiguousType means the name exists but only as object
	// types other than the one requested or inferred.
	OutcomeAmbiguousType Outcome = "ambiguous_type"
)

// CommandRunner dispatches one MQSC command to a queue manager on a host.
// The production implementation is the MQ admin REST client; tests use a
// recording fake.
type CommandRunner interface {
	RunCommand(ctx context.Context, qmgr, command, hostname string) (string, error)
}

// HostRef names one (queue manager, hostname) pair.
type HostRef struct {
	QueueManager string `json:"queue_manager"`
	Hostname     string `json:"hostname"`
}

// ManagerResult is the outcome of the follow-up command on one manager.
// Fan-out never drops a manager: a per-manager failure is recorded in its
// own slot so the aggregate stays complete.
type ManagerResult struct {
	QueueManager string `json:"queue_manager"`
	Hostname     string `json:"hostname"`
	Command      string `json:"command,omitempty"`
	Output       string `json:"output,omitempty"`
	Depth        *int   `json:"depth,omitempty"`
	Error        string `json:"error,omitempty"`
}

// AliasStep records one alias-to-target mapping discovered on one manager.
type AliasStep struct {
	Alias        string `json:"alias"`
	Target       string `json:"target"`
	QueueManager string `json:"queue_manager"`
}

// Result is the output of one resolution.
type Result struct {
	QueriedName  string   `json:"queried_name"`
	InferredType string   `json:"inferred_type,omitempty"`
	Intent       Intent   `json:"intent"`
	Outcome      Outcome  `json:"outcome"`
	Reason       string   `json:"reason,omitempty"`
	FoundTypes   []string `json:"found_types,omitempty"`

	AllowedHosts    []HostRef `json:"allowed_hosts,omitempty"`
	RestrictedHosts []HostRef `json:"restricted_hosts,omitempty"`

	// Commands holds one entry per allowed manager, in fan-out order.
	Commands []ManagerResult `json:"commands,omitempty"`

	// AliasSteps and Target are set when the queried name is an alias
	// and the intent needed the real message count. Target is the
	// resolution of the alias's target queue; the hop is taken at most
	// once, chains deeper than one level are not followed.
	AliasSteps []AliasStep `json:"alias_steps,omitempty"`
	Target     *Result     `json:"target,omitempty"`
}

// Resolver runs the resolution workflow against a shared directory index.
//
// Thread Safety: Resolver is safe for concurrent use. The index is
// read-only after load and the gate is immutable.
type Resolver struct {
	index  *directory.Index
	gate   *directory.Gate
	runner CommandRunner
}

// New creates a Resolver.
func New(index *directory.Index, gate *directory.Gate, runner CommandRunner) *Resolver {
	return &Resolver{index: index, gate: gate, runner: runner}
}

// Resolve finds every queue manager hosting the named object and answers
// the intent against all of them.
//
// Description:
//
//	The name is trimmed and uppercased, its type inferred from the
//	fleet naming convention, and the directory searched under that type
//	(or the queue-like union when the name follows no convention).
//	Matches are partitioned through the allow-list gate; restricted
//	hosts are reported but never receive a command, regardless of how
//	they were discovered. For alias queues with a depth intent the
//	resolver displays the alias definition on each allowed manager,
//	extracts the target, and resolves the target once more. That second
//	resolution never chases a further alias, so resolution terminates
//	even on cyclic alias data.
//
// Inputs:
//   - ctx: Context for cancellation; passed through to every command.
//   - name: The queue or object name to resolve.
//   - intent: depth, status, or existence.
//
// Outputs:
//   - *Result: The classification plus per-manager command results.
//     Resolution-level failures (not found, restricted, ambiguous type)
//     are Outcomes on the Result, not errors.
func (r *Resolver) Resolve(ctx context.Context, name string, intent Intent) *Result {
	return r.resolve(ctx, name, intent, true)
}

func (r *Resolver) resolve(ctx context.Context, name string, intent Intent, followAlias bool) *Result {
	queried := strings.ToUpper(strings.TrimSpace(name))
	result := &Result{
		QueriedName:  queried,
		InferredType: directory.InferType(queried),
		Intent:       intent,
	}

	filter := result.InferredType
	if filter == "" {
		filter = directory.TypeQueues
	}

	search := r.index.Search(queried, filter)
	switch search.Outcome {
	case directory.OutcomeNotFound:
		result.Outcome = OutcomeNotFound
		result.Reason = "'" + queried + "' not found in the directory snapshot."
		return result

	case directory.OutcomeTypeMismatch:
		result.Outcome = OutcomeAmbiguousType
		result.FoundTypes = search.FoundTypes
		result.Reason = "'" + queried + "' exists but not as type '" + filter +
			"' (found: " + strings.Join(search.FoundTypes, ", ") + ")."
		return result
	}

	// Partition through the gate. Restricted hosts are surfaced, never
	// silently dropped and never commanded.
	var allowedEntries []directory.Entry
	for _, e := range search.Entries {
		ref := HostRef{QueueManager: e.QueueManager, Hostname: e.Hostname}
		if ok, _ := r.gate.Allowed(e.Hostname); ok {
			result.AllowedHosts = append(result.AllowedHosts, ref)
			allowedEntries = append(allowedEntries, e)
		} else {
			result.RestrictedHosts = append(result.RestrictedHosts, ref)
		}
	}

	switch {
	case len(result.AllowedHosts) == 0:
		result.Outcome = OutcomeRestricted
		result.Reason = "'" + queried + "' was found, but only on restricted systems."
		return result
	case len(result.RestrictedHosts) > 0:
		result.Outcome = OutcomePartiallyRestricted
	default:
		result.Outcome = OutcomeResolved
	}

	if followAlias && intent == IntentDepth && isAliasOnly(allowedEntries) {
		r.resolveAlias(ctx, queried, allowedEntries, result)
		return result
	}

	result.Commands = r.fanOut(ctx, queried, intent, allowedEntries)
	return result
}

// isAliasOnly reports whether every allowed match is an alias record.
func isAliasOnly(entries []directory.Entry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.ObjectType != directory.TypeAlias {
			return false
		}
	}
	return true
}

// resolveAlias displays the alias definition on each allowed manager,
// extracts the target, and resolves the first discovered target without
// following any further alias hop.
func (r *Resolver) resolveAlias(ctx context.Context, alias string, entries []directory.Entry, result *Result) {
	command, _ := BuildCommand(directory.TypeAlias, IntentDepth, alias)

	for _, e := range entries {
		mr := r.dispatch(ctx, e, command)
		result.Commands = append(result.Commands, mr)
		if mr.Error != "" {
			continue
		}

		target := ExtractAliasTarget(mr.Output)
		if target == "" {
			// The live display may omit the attribute; the snapshot
			// definition is the fallback.
			target = ExtractAliasTarget(e.Definition)
		}
		if target == "" {
			slog.Warn("Alias has no extractable target",
				"alias", alias, "qmgr", e.QueueManager)
			continue
		}
		result.AliasSteps = append(result.AliasSteps, AliasStep{
			Alias:        alias,
			Target:       target,
			QueueManager: e.QueueManager,
		})
	}

	if len(result.AliasSteps) > 0 && result.Target == nil {
		result.Target = r.resolve(ctx, result.AliasSteps[0].Target, IntentDepth, false)
	}
}

// fanOut runs the intent's command on every allowed manager, in order.
// The aggregate always contains one slot per manager; a per-manager
// connectivity failure lands in that slot's Error field.
func (r *Resolver) fanOut(ctx context.Context, name string, intent Intent, entries []directory.Entry) []ManagerResult {
	var results []ManagerResult
	for _, e := range entries {
		command, ok := BuildCommand(e.ObjectType, intent, name)
		if !ok {
			results = append(results, ManagerResult{
				QueueManager: e.QueueManager,
				Hostname:     e.Hostname,
			})
			continue
		}
		results = append(results, r.dispatch(ctx, e, command))
	}
	return results
}

// dispatch runs one command on one manager, re-checking the gate first.
func (r *Resolver) dispatch(ctx context.Context, e directory.Entry, command string) ManagerResult {
	mr := ManagerResult{
		QueueManager: e.QueueManager,
		Hostname:     e.Hostname,
		Command:      command,
	}

	// Second gate check immediately before dispatch. Search-time
	// filtering must not be the only line of defense.
	if ok, reason := r.gate.Allowed(e.Hostname); !ok {
		mr.Error = reason
		return mr
	}

	output, err := r.runner.RunCommand(ctx, e.QueueManager, command, e.Hostname)
	if err != nil {
		slog.Warn("Command dispatch failed",
			"qmgr", e.QueueManager, "hostname", e.Hostname, "error", err)
		mr.Error = err.Error()
		return mr
	}
	mr.Output = output
	if depth, ok := ExtractDepth(output); ok {
		mr.Depth = &depth
	}
	return mr
}
