// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIClient_ChatWithTools_ToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "search_qmgr_dump" {
			t.Errorf("tools = %+v", req.Tools)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "search_qmgr_dump", "arguments": "{\"search_string\":\"QL.IN.APP1\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 80, "completion_tokens": 20}
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	tools := []ToolDef{{
		Type: "function",
		Function: ToolFunction{
			Name:        "search_qmgr_dump",
			Description: "Search the object directory.",
			Parameters:  ToolParameters{Type: "object"},
		},
	}}

	result, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "where is QL.IN.APP1?"}}, GenerationParams{}, tools)
	if err != nil {
		t.Fatalf("ChatWithTools returned error: %v", err)
	}

	if result.StopReason != "tool_use" {
		t.Errorf("StopReason = %q, want tool_use", result.StopReason)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(result.ToolCalls))
	}
	if result.ToolCalls[0].ID != "call_abc" {
		t.Errorf("ID = %q, want call_abc", result.ToolCalls[0].ID)
	}
	if !strings.Contains(result.ToolCalls[0].ArgumentsString(), "QL.IN.APP1") {
		t.Errorf("arguments = %q", result.ToolCalls[0].ArgumentsString())
	}
	if result.Usage.InputTokens != 80 || result.Usage.OutputTokens != 20 {
		t.Errorf("usage = %+v, want 80/20", result.Usage)
	}
}

func TestOpenAIClient_ChatWithTools_ToolResultRoundTrip(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Found it on MQQMGR1."},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	messages := []ChatMessage{
		{Role: "user", Content: "where is QL.IN.APP1?"},
		{Role: "assistant", ToolCalls: []ToolCallResponse{
			{ID: "call_abc", Name: "search_qmgr_dump", Arguments: json.RawMessage(`{"search_string":"QL.IN.APP1"}`)},
		}},
		{Role: "tool", ToolCallID: "call_abc", ToolName: "search_qmgr_dump", Content: "MQQMGR1: QL.IN.APP1 (QLOCAL)"},
	}

	result, err := client.ChatWithTools(context.Background(), messages, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools returned error: %v", err)
	}
	if result.StopReason != "end" {
		t.Errorf("StopReason = %q, want end", result.StopReason)
	}
	if result.Content != "Found it on MQQMGR1." {
		t.Errorf("Content = %q", result.Content)
	}

	if len(captured.Messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(captured.Messages))
	}
	if captured.Messages[2].ToolCallID != "call_abc" {
		t.Errorf("tool message ToolCallID = %q, want call_abc", captured.Messages[2].ToolCallID)
	}
	if len(captured.Messages[1].ToolCalls) != 1 {
		t.Errorf("assistant message should carry tool_calls, got %+v", captured.Messages[1])
	}
}

func TestOpenAIClient_ChatWithTools_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "chatcmpl-3", "object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	_, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "hi"}}, GenerationParams{}, nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "openai: returned no choices") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewOpenAIClient_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error should name the env var, got: %v", err)
	}
}
