// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rest exposes the MQ assistant over HTTP: a conversational chat
// endpoint backed by the orchestrator, a deterministic resolve endpoint
// that bypasses the model entirely, and fleet status endpoints.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/queueworks/mqassist/services/agent"
	"github.com/queueworks/mqassist/services/mq/resolver"
)

// ErrorResponse is the JSON error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ChatRequest is the body for POST /v1/mq/chat.
type ChatRequest struct {
	// SessionID continues an existing conversation. Empty starts a new
	// session; the response carries the assigned ID.
	SessionID string `json:"session_id"`

	// Message is the operator's utterance.
	Message string `json:"message" binding:"required"`
}

// ChatResponse is the reply for POST /v1/mq/chat.
type ChatResponse struct {
	SessionID    string                 `json:"session_id"`
	Response     string                 `json:"response"`
	InputTokens  int                    `json:"input_tokens"`
	OutputTokens int                    `json:"output_tokens"`
	ToolLog      []agent.ToolInvocation `json:"tool_log,omitempty"`
}

// ResolveRequest is the body for POST /v1/mq/resolve.
type ResolveRequest struct {
	QueueName string `json:"queue_name" binding:"required"`
	Intent    string `json:"intent"`
}

// chatSession pairs a session with its lock. Sessions are
// single-conversation state machines; concurrent turns on the same
// session must serialize.
type chatSession struct {
	mu      sync.Mutex
	session *agent.Session
}

// Handlers carries the HTTP endpoint implementations.
//
// Description:
//
//	Chat sessions live in memory keyed by session ID; they are lost on
//	restart. The resolve and fleet endpoints are stateless.
//
// Thread Safety: Handlers is safe for concurrent use. The session map is
// guarded by a mutex and each session serializes its own turns.
type Handlers struct {
	executor   *agent.Executor
	admin      agent.AdminAPI
	ready      func(ctx context.Context) error
	newSession func() *agent.Session

	mu       sync.Mutex
	sessions map[string]*chatSession
}

// HandlersConfig wires the collaborators for NewHandlers.
type HandlersConfig struct {
	// Executor runs tools and deterministic resolutions.
	Executor *agent.Executor

	// Admin is the MQ admin client for the fleet endpoints.
	Admin agent.AdminAPI

	// Ready probes MQ REST connectivity for the readiness endpoint.
	// Nil means always ready.
	Ready func(ctx context.Context) error

	// NewSession creates a fresh orchestrator session for a new
	// conversation.
	NewSession func() *agent.Session
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		executor:   cfg.Executor,
		admin:      cfg.Admin,
		ready:      cfg.Ready,
		newSession: cfg.NewSession,
		sessions:   make(map[string]*chatSession),
	}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}

// HandleChat handles POST /v1/mq/chat.
//
// Description:
//
//	Runs one conversational turn. An empty session_id starts a new
//	session; subsequent requests with the returned ID continue it with
//	full history. A turn that exhausts the tool budget still returns
//	200 with the cutoff message, keeping the session usable.
//
// Response:
//
//	200 OK: ChatResponse
//	400 Bad Request: Missing message
//	404 Not Found: Unknown session_id
//	502 Bad Gateway: LLM provider failure
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleChat")

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	cs, sessionID, err := h.session(req.SessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "unknown session: " + req.SessionID,
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	answer, usage, err := cs.session.RunTurn(c.Request.Context(), req.Message)
	if err != nil && !errors.Is(err, agent.ErrMaxIterations) {
		logger.Error("Chat turn failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "LLM provider call failed",
			Code:  "PROVIDER_ERROR",
		})
		return
	}

	logger.Info("Chat turn complete",
		slog.String("session_id", sessionID),
		slog.Int("input_tokens", usage.InputTokens),
		slog.Int("output_tokens", usage.OutputTokens),
	)

	c.JSON(http.StatusOK, ChatResponse{
		SessionID:    sessionID,
		Response:     answer,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		ToolLog:      cs.session.ToolLog(),
	})
}

// session returns the existing session for id, or creates one when id is
// empty. Unknown non-empty IDs are an error so clients notice restarts.
func (h *Handlers) session(id string) (*chatSession, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
		cs := &chatSession{session: h.newSession()}
		h.sessions[id] = cs
		return cs, id, nil
	}
	cs, ok := h.sessions[id]
	if !ok {
		return nil, "", errors.New("session not found")
	}
	return cs, id, nil
}

// HandleCloseSession handles DELETE /v1/mq/chat/:id.
func (h *Handlers) HandleCloseSession(c *gin.Context) {
	id := c.Param("id")

	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "unknown session: " + id,
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleResolve handles POST /v1/mq/resolve.
//
// Description:
//
//	Runs the deterministic resolution workflow with no model in the
//	loop and returns the structured result. The outcome field tells the
//	caller whether the queue resolved, was not found, sat entirely on
//	restricted hosts, or matched conflicting types.
//
// Response:
//
//	200 OK: resolver.Result
//	400 Bad Request: Missing queue_name or invalid intent
func (h *Handlers) HandleResolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "queue_name is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	intent := resolver.IntentDepth
	switch req.Intent {
	case "":
	case string(resolver.IntentDepth), string(resolver.IntentStatus), string(resolver.IntentExistence):
		intent = resolver.Intent(req.Intent)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "intent must be one of: depth, status, existence",
			Code:  "INVALID_PARAMETER",
		})
		return
	}

	result := h.executor.ResolveQueue(c.Request.Context(), req.QueueName, intent)

	slog.Info("Resolution complete",
		slog.String("request_id", requestID),
		slog.String("queue", req.QueueName),
		slog.String("outcome", string(result.Outcome)),
	)
	c.JSON(http.StatusOK, result)
}

// HandleManagers handles GET /v1/mq/qmgrs.
//
// Response:
//
//	200 OK: {"qmgr": [...]}
//	502 Bad Gateway: MQ REST API unreachable
func (h *Handlers) HandleManagers(c *gin.Context) {
	managers, err := h.admin.ListManagers(c.Request.Context())
	if err != nil {
		slog.Error("Listing queue managers failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "MQ REST API unreachable",
			Code:  "MQ_UNAVAILABLE",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"qmgr": managers})
}

// HandleVersion handles GET /v1/mq/version.
//
// Response:
//
//	200 OK: {"installation": [...]}
//	502 Bad Gateway: MQ REST API unreachable
func (h *Handlers) HandleVersion(c *gin.Context) {
	installations, err := h.admin.Installations(c.Request.Context())
	if err != nil {
		slog.Error("Listing installations failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "MQ REST API unreachable",
			Code:  "MQ_UNAVAILABLE",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"installation": installations})
}

// HandleHealth handles GET /v1/mq/health. Liveness only.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/mq/ready. Probes MQ REST connectivity.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
