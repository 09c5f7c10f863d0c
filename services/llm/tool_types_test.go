// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"encoding/json"
	"testing"
)

func TestToolCallResponse_ArgumentsString(t *testing.T) {
	tests := []struct {
		name string
		args json.RawMessage
		want string
	}{
		{
			name: "object passthrough",
			args: json.RawMessage(`{"qmgr_name":"MQQMGR1"}`),
			want: `{"qmgr_name":"MQQMGR1"}`,
		},
		{
			name: "quoted string unquoted",
			args: json.RawMessage(`"{\"qmgr_name\":\"MQQMGR1\"}"`),
			want: `{"qmgr_name":"MQQMGR1"}`,
		},
		{
			name: "nil arguments",
			args: nil,
			want: "{}",
		},
		{
			name: "empty arguments",
			args: json.RawMessage{},
			want: "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := ToolCallResponse{ID: "x", Name: "dspmq", Arguments: tt.args}
			if got := tc.ArgumentsString(); got != tt.want {
				t.Errorf("ArgumentsString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsage_Add(t *testing.T) {
	u := Usage{InputTokens: 100, OutputTokens: 30}
	u.Add(Usage{InputTokens: 50, OutputTokens: 20})
	u.Add(Usage{})

	if u.InputTokens != 150 {
		t.Errorf("InputTokens = %d, want 150", u.InputTokens)
	}
	if u.OutputTokens != 50 {
		t.Errorf("OutputTokens = %d, want 50", u.OutputTokens)
	}
}
