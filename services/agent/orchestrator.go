// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/queueworks/mqassist/services/llm"
)

// ErrMaxIterations marks a turn that burned its whole loop budget
// without the provider returning free text. It is a circuit breaker, not
// a bug signal: callers render the accompanying message and keep the
// session alive.
var ErrMaxIterations = errors.New("agent: max tool iterations exceeded")

// maxIterationsMessage is the operator-facing text for ErrMaxIterations.
const maxIterationsMessage = "Max tool calls exceeded. Stopping this turn."

// ToolExecutor runs one tool call and returns its textual result.
// *Executor satisfies it; orchestrator tests use scripted fakes.
type ToolExecutor interface {
	Execute(ctx context.Context, call llm.ToolCallResponse) string
}

// ToolInvocation is one audit-log entry. The log is append-only and is
// never read back into the decision loop.
type ToolInvocation struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// SessionConfig tunes one orchestrator session. Zero values fall back to
// the package defaults.
type SessionConfig struct {
	SystemPrompt  string
	MaxIterations int
	HistoryCap    int
}

// Session owns one conversation: its history, its tool log, and the
// bounded provider/tool loop.
//
// Description:
//
//	A Session is single-threaded by contract: one logical conversation,
//	no concurrent RunTurn calls on the same instance. Independent
//	sessions may run concurrently; the executor and directory behind
//	them are safe to share.
//
// Thread Safety: NOT safe for concurrent use. Callers that multiplex
// sessions (the HTTP facade) must serialize per session.
type Session struct {
	provider Provider
	executor ToolExecutor
	tools    []llm.ToolDef

	systemPrompt  string
	maxIterations int
	historyCap    int

	history []llm.ChatMessage
	toolLog []ToolInvocation
	usage   llm.Usage
}

// NewSession creates a Session over a provider and a tool executor.
func NewSession(provider Provider, executor ToolExecutor, cfg SessionConfig) *Session {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = DefaultMaxToolIterations
	}
	if cfg.HistoryCap < 1 {
		cfg.HistoryCap = DefaultHistoryCap
	}
	return &Session{
		provider:      provider,
		executor:      executor,
		tools:         ToolCatalog(),
		systemPrompt:  cfg.SystemPrompt,
		maxIterations: cfg.MaxIterations,
		historyCap:    cfg.HistoryCap,
	}
}

// RunTurn feeds one user utterance through the provider/tool loop.
//
// Description:
//
//	The loop sends the system prompt, history, and tool catalog to the
//	provider. Tool requests are executed synchronously in request order,
//	each result appended to history, and the provider consulted again.
//	A free-text response ends the turn. A provider that keeps requesting
//	tools is cut off after the configured iteration budget with
//	ErrMaxIterations; the returned text is still usable operator output.
//
// Inputs:
//   - ctx: Context for cancellation; forwarded to the provider and tools.
//   - userInput: The operator's utterance.
//
// Outputs:
//   - string: The assistant's final text for this turn.
//   - llm.Usage: Token usage accumulated across this turn's provider calls.
//   - error: Provider transport failures, or ErrMaxIterations.
func (s *Session) RunTurn(ctx context.Context, userInput string) (string, llm.Usage, error) {
	s.history = append(s.history, llm.ChatMessage{Role: "user", Content: userInput})

	var turnUsage llm.Usage

	for i := 0; i < s.maxIterations; i++ {
		messages := make([]llm.ChatMessage, 0, len(s.history)+1)
		messages = append(messages, llm.ChatMessage{Role: "system", Content: s.systemPrompt})
		messages = append(messages, s.history...)

		result, err := s.provider.Send(ctx, messages, s.tools)
		if err != nil {
			turnsTotal.WithLabelValues("provider_error").Inc()
			return "", turnUsage, fmt.Errorf("agent: provider call failed: %w", err)
		}
		turnUsage.Add(result.Usage)
		s.usage.Add(result.Usage)

		if len(result.ToolCalls) == 0 {
			s.history = append(s.history, llm.ChatMessage{Role: "assistant", Content: result.Content})
			s.prune()
			turnsTotal.WithLabelValues("done").Inc()
			return result.Content, turnUsage, nil
		}

		s.history = append(s.history, llm.ChatMessage{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})

		// Execute in request order; some providers match results to
		// requests positionally.
		for _, call := range result.ToolCalls {
			output := s.executor.Execute(ctx, call)
			s.toolLog = append(s.toolLog, ToolInvocation{
				Name:      call.Name,
				Arguments: call.ArgumentsString(),
			})
			s.history = append(s.history, llm.ChatMessage{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	slog.Warn("Tool iteration budget exhausted", "max_iterations", s.maxIterations)
	s.history = append(s.history, llm.ChatMessage{Role: "assistant", Content: maxIterationsMessage})
	s.prune()
	turnsTotal.WithLabelValues("max_iterations").Inc()
	return maxIterationsMessage, turnUsage, ErrMaxIterations
}

// prune drops the oldest turns once history exceeds the cap. Cuts happen
// only at user-message boundaries so an assistant tool request is never
// separated from its tool results.
func (s *Session) prune() {
	for len(s.history) > s.historyCap {
		cut := -1
		for i := 1; i < len(s.history); i++ {
			if s.history[i].Role == "user" {
				cut = i
				break
			}
		}
		if cut < 0 {
			return
		}
		s.history = s.history[cut:]
	}
}

// History returns a copy of the retained conversation.
func (s *Session) History() []llm.ChatMessage {
	out := make([]llm.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// ToolLog returns a copy of the ordered tool invocation record.
func (s *Session) ToolLog() []ToolInvocation {
	out := make([]ToolInvocation, len(s.toolLog))
	copy(out, s.toolLog)
	return out
}

// Usage returns the session's accumulated token usage.
func (s *Session) Usage() llm.Usage {
	return s.usage
}
