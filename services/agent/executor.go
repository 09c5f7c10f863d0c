// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/queueworks/mqassist/services/llm"
	"github.com/queueworks/mqassist/services/mq"
	"github.com/queueworks/mqassist/services/mq/directory"
	"github.com/queueworks/mqassist/services/mq/resolver"
)

// AdminAPI is the slice of the MQ admin client the executor needs.
// *mq.Client satisfies it; tests use a fake.
type AdminAPI interface {
	ListManagers(ctx context.Context) ([]mq.Manager, error)
	Installations(ctx context.Context) ([]mq.Installation, error)
	RunCommand(ctx context.Context, qmgr, command, hostname string) (*mq.CommandResponse, error)
}

// commandRunner adapts AdminAPI to the resolver's CommandRunner contract,
// flattening the structured response to display text.
type commandRunner struct {
	admin AdminAPI
}

func (c *commandRunner) RunCommand(ctx context.Context, qmgr, command, hostname string) (string, error) {
	resp, err := c.admin.RunCommand(ctx, qmgr, command, hostname)
	if err != nil {
		return "", err
	}
	return mq.FormatCommandResponse(resp), nil
}

// Executor implements the tool catalog against the admin API, the
// directory snapshot, and the entity resolver.
//
// Description:
//
//	Every tool returns user-visible text. Downstream connectivity
//	failures are rendered into that text rather than propagated, so one
//	unreachable host never aborts a whole conversation turn.
//
// Thread Safety: Executor is safe for concurrent use; the directory is
// read-only and the admin client is concurrency-safe.
type Executor struct {
	admin    AdminAPI
	index    *directory.Index
	gate     *directory.Gate
	resolver *resolver.Resolver
}

// NewExecutor creates an Executor over the given collaborators.
func NewExecutor(admin AdminAPI, index *directory.Index, gate *directory.Gate) *Executor {
	return &Executor{
		admin:    admin,
		index:    index,
		gate:     gate,
		resolver: resolver.New(index, gate, &commandRunner{admin: admin}),
	}
}

// Execute runs one tool call and returns its textual result.
//
// Inputs:
//   - ctx: Context for cancellation; forwarded to admin API calls.
//   - call: The provider's tool request.
//
// Outputs:
//   - string: The tool output, always non-empty. Unknown tools and
//     malformed arguments produce explanatory text, not errors.
func (e *Executor) Execute(ctx context.Context, call llm.ToolCallResponse) string {
	start := time.Now()
	output, failed := e.dispatch(ctx, call)
	recordToolMetrics(call.Name, time.Since(start), failed)

	slog.Debug("Tool executed",
		slog.String("tool", call.Name),
		slog.Bool("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
	return output
}

func (e *Executor) dispatch(ctx context.Context, call llm.ToolCallResponse) (string, bool) {
	args, err := parseArgs(call.Arguments)
	if err != nil {
		return fmt.Sprintf("Invalid arguments for %s: %v", call.Name, err), true
	}

	switch call.Name {
	case ToolDspmq:
		return e.dspmq(ctx)
	case ToolDspmqver:
		return e.dspmqver(ctx)
	case ToolRunmqsc:
		return e.runmqsc(ctx, args)
	case ToolSearchQmgrDump:
		return e.searchDump(args)
	case ToolResolveQueue:
		return e.resolveQueue(ctx, args)
	default:
		return fmt.Sprintf("Unknown tool: %s", call.Name), true
	}
}

func (e *Executor) dspmq(ctx context.Context) (string, bool) {
	managers, err := e.admin.ListManagers(ctx)
	if err != nil {
		return connectionError(err), true
	}
	if len(managers) == 0 {
		return "No queue managers found.", false
	}
	return mq.FormatManagers(managers), false
}

func (e *Executor) dspmqver(ctx context.Context) (string, bool) {
	installations, err := e.admin.Installations(ctx)
	if err != nil {
		return connectionError(err), true
	}
	return mq.FormatInstallations(installations), false
}

// runmqsc dispatches an arbitrary MQSC command. The target hostname
// resolves in order: explicit argument, directory lookup by queue manager,
// then the queue manager name itself. Whatever wins must pass the gate.
func (e *Executor) runmqsc(ctx context.Context, args map[string]interface{}) (string, bool) {
	qmgr := stringArg(args, "qmgr_name")
	command := stringArg(args, "mqsc_command")
	if qmgr == "" || command == "" {
		return "runmqsc requires qmgr_name and mqsc_command.", true
	}

	hostname := stringArg(args, "hostname")
	if hostname == "" {
		hostname = e.hostnameFor(qmgr)
	}
	if hostname == "" {
		slog.Warn("Queue manager not in snapshot, using its name as hostname", "qmgr", qmgr)
		hostname = qmgr
	}

	if ok, reason := e.gate.Allowed(hostname); !ok {
		return reason, true
	}

	resp, err := e.admin.RunCommand(ctx, qmgr, command, hostname)
	if err != nil {
		return connectionError(err), true
	}
	return mq.FormatCommandResponse(resp), false
}

// hostnameFor looks up the snapshot host for a queue manager.
func (e *Executor) hostnameFor(qmgr string) string {
	for _, entry := range e.index.Entries() {
		if strings.EqualFold(entry.QueueManager, qmgr) {
			return entry.Hostname
		}
	}
	return ""
}

func (e *Executor) searchDump(args map[string]interface{}) (string, bool) {
	query := stringArg(args, "search_string")
	if query == "" {
		return "search_qmgr_dump requires search_string.", true
	}

	result := e.index.Search(query, stringArg(args, "object_type"))
	switch result.Outcome {
	case directory.OutcomeNotFound:
		return fmt.Sprintf("'%s' not found in the directory snapshot.", query), false
	case directory.OutcomeTypeMismatch:
		return fmt.Sprintf("'%s' exists but not as type '%s'. (Found types: %s)",
			query, result.Filter, strings.Join(result.FoundTypes, ", ")), false
	}

	var allowed, restricted []string
	for _, entry := range result.Entries {
		if ok, _ := e.gate.Allowed(entry.Hostname); ok {
			allowed = append(allowed, fmt.Sprintf("QM:%s Host:%s Type:%s",
				entry.QueueManager, entry.Hostname, entry.ObjectType))
		} else {
			restricted = append(restricted, fmt.Sprintf("QM:%s [RESTRICTED: %s] Type:%s",
				entry.QueueManager, entry.Hostname, entry.ObjectType))
		}
	}

	// A restricted-only match is still a match; never report it as
	// not found.
	if len(allowed) == 0 {
		return fmt.Sprintf("'%s' was found, but only on restricted systems. Access is not available.", query), false
	}
	return strings.Join(append(allowed, restricted...), "\n"), false
}

func (e *Executor) resolveQueue(ctx context.Context, args map[string]interface{}) (string, bool) {
	name := stringArg(args, "queue_name")
	if name == "" {
		return "resolve_queue requires queue_name.", true
	}

	intent := resolver.Intent(stringArg(args, "intent"))
	if intent == "" {
		intent = resolver.IntentDepth
	}

	result := e.ResolveQueue(ctx, name, intent)
	return FormatResolution(result), false
}

// ResolveQueue runs the deterministic resolution workflow. Both the model
// tool path and the direct UI path land here, so the outcome metric sees
// every resolution.
func (e *Executor) ResolveQueue(ctx context.Context, name string, intent resolver.Intent) *resolver.Result {
	result := e.resolver.Resolve(ctx, name, intent)
	resolutionsTotal.WithLabelValues(string(result.Outcome)).Inc()
	return result
}

func connectionError(err error) string {
	return fmt.Sprintf("Connection Error: %s", llm.SafeLogString(err.Error()))
}

// parseArgs decodes tool arguments into a generic map. Empty arguments
// are valid and decode to an empty map.
func parseArgs(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// stringArg extracts a trimmed string parameter; missing or non-string
// values yield "".
func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
