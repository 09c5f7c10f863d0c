// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent drives the bounded tool-calling loop between a pluggable
// LLM provider and the MQ tool executor, and carries the deterministic
// resolution path the UI can call without any model in the loop.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/queueworks/mqassist/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Provider constants for supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// ValidProviders contains the set of valid provider names.
var ValidProviders = []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini}

// Provider is the adapter contract the orchestrator talks through.
//
// Description:
//
//	Implementations differ only in message-envelope shape; the
//	orchestrator core never branches on provider identity. The adapter
//	is fixed per session; swapping mid-session is undefined.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider for logs and metrics.
	Name() string

	// Send forwards the conversation and tool catalog, returning either
	// free text, tool requests, or both, plus token usage.
	Send(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error)
}

// toolCaller is the shared shape of the three native clients.
type toolCaller interface {
	ChatWithTools(ctx context.Context, messages []llm.ChatMessage,
		params llm.GenerationParams, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error)
}

// adapter wraps one native client with tracing and metrics. All three
// providers share it because the native clients already speak the generic
// tool-calling types.
type adapter struct {
	name   string
	client toolCaller
	params llm.GenerationParams
}

func (a *adapter) Name() string { return a.name }

// Send implements Provider. Each call gets an OTel span and a metrics
// sample labeled by provider and status.
func (a *adapter) Send(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
	if a.client == nil {
		return nil, fmt.Errorf("%s: client is nil", a.name)
	}

	ctx, span := otel.Tracer(chatTracerName).Start(ctx, "agent.Provider.Send",
		trace.WithAttributes(
			attribute.String("provider", a.name),
			attribute.Int("message_count", len(messages)),
			attribute.Int("tool_count", len(tools)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := a.client.ChatWithTools(ctx, messages, a.params, tools)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordChatMetrics(a.name, duration, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("stop_reason", result.StopReason),
		attribute.Int("tool_calls", len(result.ToolCalls)),
		attribute.Int("input_tokens", result.Usage.InputTokens),
		attribute.Int("output_tokens", result.Usage.OutputTokens),
	)
	recordChatMetrics(a.name, duration, nil)
	return result, nil
}

// NewProvider creates the adapter for the configured provider.
//
// Description:
//
//	Central creation point for provider adapters. Each branch checks
//	that the required API key is present before constructing the native
//	client, so a misconfigured provider fails at session setup rather
//	than on the first user turn.
//
// Inputs:
//   - cfg: The provider selection, model override, and API key.
//
// Outputs:
//   - Provider: The configured adapter.
//   - error: Non-nil for unsupported providers or missing credentials.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	params := llm.GenerationParams{ModelOverride: cfg.Model}

	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY required for Anthropic provider")
		}
		client, err := llm.NewAnthropicClient()
		if err != nil {
			return nil, fmt.Errorf("creating Anthropic client: %w", err)
		}
		return &adapter{name: ProviderAnthropic, client: client, params: params}, nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY required for OpenAI provider")
		}
		client, err := llm.NewOpenAIClient()
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		return &adapter{name: ProviderOpenAI, client: client, params: params}, nil

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY required for Gemini provider")
		}
		client, err := llm.NewGeminiClient()
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		return &adapter{name: ProviderGemini, client: client, params: params}, nil

	default:
		return nil, fmt.Errorf("unsupported provider: %q (valid: %v)", cfg.Provider, ValidProviders)
	}
}
