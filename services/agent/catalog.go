// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import "github.com/queueworks/mqassist/services/llm"

// Tool names fixed by the assistant's catalog.
const (
	ToolDspmq          = "dspmq"
	ToolDspmqver       = "dspmqver"
	ToolRunmqsc        = "runmqsc"
	ToolSearchQmgrDump = "search_qmgr_dump"
	ToolResolveQueue   = "resolve_queue"
)

// ToolCatalog returns the tool definitions offered to every provider.
//
// Description:
//
//	Five tools: the three admin operations (manager listing, version
//	info, MQSC dispatch), the directory search, and the deterministic
//	queue resolver. The resolver tool folds the search/gate/alias/fan-out
//	workflow into one call so the model does not have to orchestrate it
//	from prose instructions.
func ToolCatalog() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolDspmq,
				Description: "List available queue managers and whether they are running or not.",
				Parameters: llm.ToolParameters{
					Type:       "object",
					Properties: map[string]llm.ToolParamDef{},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolDspmqver,
				Description: "Display IBM MQ version and installation information.",
				Parameters: llm.ToolParameters{
					Type:       "object",
					Properties: map[string]llm.ToolParamDef{},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolRunmqsc,
				Description: "Run an MQSC command against a specific queue manager.",
				Parameters: llm.ToolParameters{
					Type: "object",
					Properties: map[string]llm.ToolParamDef{
						"qmgr_name": {
							Type:        "string",
							Description: "The queue manager to run the command on.",
						},
						"mqsc_command": {
							Type:        "string",
							Description: "The MQSC command, e.g. 'DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH'.",
						},
						"hostname": {
							Type:        "string",
							Description: "Optional host carrying the queue manager, from search_qmgr_dump.",
						},
					},
					Required: []string{"qmgr_name", "mqsc_command"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolSearchQmgrDump,
				Description: "Search the queue manager directory snapshot to find which managers host an object.",
				Parameters: llm.ToolParameters{
					Type: "object",
					Properties: map[string]llm.ToolParamDef{
						"search_string": {
							Type:        "string",
							Description: "String to search, e.g. a queue name.",
						},
						"object_type": {
							Type:        "string",
							Description: "Optional type filter, e.g. 'QLOCAL', 'QALIAS', 'QUEUES', 'CHANNEL'.",
						},
					},
					Required: []string{"search_string"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolResolveQueue,
				Description: "Resolve a queue name across the whole fleet: finds every hosting queue manager, follows alias indirection one hop, and runs the right display command on each allowed manager.",
				Parameters: llm.ToolParameters{
					Type: "object",
					Properties: map[string]llm.ToolParamDef{
						"queue_name": {
							Type:        "string",
							Description: "The queue name to resolve, e.g. 'QL.IN.APP1'.",
						},
						"intent": {
							Type:        "string",
							Description: "What to report per manager. Defaults to depth.",
							Enum:        []any{"depth", "status", "existence"},
						},
					},
					Required: []string{"queue_name"},
				},
			},
		},
	}
}
