// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// chatTracerName is the shared OTel tracer name for all provider adapters.
const chatTracerName = "mqassist.agent"

// Package-level Prometheus metrics. Auto-registered via promauto so no
// explicit registry wiring is needed.
var (
	// chatCallDuration measures the duration of provider API calls.
	//
	// Labels:
	//   - provider: "anthropic", "openai", "gemini"
	//   - status: "success" or "error"
	chatCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mqassist",
			Subsystem: "chat",
			Name:      "call_duration_seconds",
			Help:      "Duration of LLM provider API calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// chatCallsTotal counts provider API calls.
	chatCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mqassist",
			Subsystem: "chat",
			Name:      "calls_total",
			Help:      "Total number of LLM provider API calls.",
		},
		[]string{"provider", "status"},
	)

	// chatErrorsTotal counts provider errors by type.
	//
	// Labels:
	//   - provider: "anthropic", "openai", "gemini"
	//   - error_type: "timeout", "auth", "rate_limit", "server", "nil_client", "unknown"
	chatErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mqassist",
			Subsystem: "chat",
			Name:      "errors_total",
			Help:      "Total LLM provider errors by type.",
		},
		[]string{"provider", "error_type"},
	)

	// toolExecutionsTotal counts tool invocations by the orchestrator.
	//
	// Labels:
	//   - tool: the tool name from the catalog
	//   - status: "success" or "error"
	toolExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mqassist",
			Subsystem: "agent",
			Name:      "tool_executions_total",
			Help:      "Total tool executions by tool name.",
		},
		[]string{"tool", "status"},
	)

	// toolExecutionDuration measures tool execution time.
	toolExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mqassist",
			Subsystem: "agent",
			Name:      "tool_execution_duration_seconds",
			Help:      "Duration of tool executions in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30},
		},
		[]string{"tool"},
	)

	// resolutionsTotal counts entity resolutions by outcome.
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mqassist",
			Subsystem: "agent",
			Name:      "resolutions_total",
			Help:      "Total entity resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	// turnsTotal counts orchestrator turns by terminal state.
	//
	// Labels:
	//   - result: "done", "max_iterations", "provider_error"
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mqassist",
			Subsystem: "agent",
			Name:      "turns_total",
			Help:      "Total orchestrator turns by terminal state.",
		},
		[]string{"result"},
	)
)

// classifyChatError maps an error to a label-safe error type string.
//
// Thread Safety: Safe for concurrent use.
func classifyChatError(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "client is nil"):
		return "nil_client"
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "status 429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests"):
		return "rate_limit"
	case strings.Contains(msg, "status 500") ||
		strings.Contains(msg, "status 502") ||
		strings.Contains(msg, "status 503") ||
		strings.Contains(msg, "server error"):
		return "server"
	default:
		return "unknown"
	}
}

// recordChatMetrics records Prometheus metrics for a completed provider call.
//
// Thread Safety: Safe for concurrent use.
func recordChatMetrics(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		chatErrorsTotal.WithLabelValues(provider, classifyChatError(err)).Inc()
	}

	chatCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	chatCallsTotal.WithLabelValues(provider, status).Inc()
}

// recordToolMetrics records Prometheus metrics for one tool execution.
func recordToolMetrics(tool string, duration time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	toolExecutionsTotal.WithLabelValues(tool, status).Inc()
	toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
