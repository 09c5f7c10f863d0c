// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mq

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// stripHeaders are boilerplate prefixes removed from distributed MQSC
// response lines before attribute splitting.
var stripHeaders = []string{
	"AMQ8409I: Display Queue details.",
	"AMQ8450I: Display Channel details.",
	"AMQ8420I: Display Queue Manager details.",
}

var attrSplitRE = regexp.MustCompile(`\s{2,}`)

// FormatManagers renders a queue manager listing one manager per line,
// in "name=X, state=Y" form.
func FormatManagers(managers []Manager) string {
	lines := make([]string, 0, len(managers))
	for _, m := range managers {
		lines = append(lines, fmt.Sprintf("name=%s, state=%s", m.Name, m.State))
	}
	return strings.Join(lines, "\n")
}

// FormatInstallations renders installation details as separated blocks.
func FormatInstallations(installations []Installation) string {
	lines := []string{"\n---"}
	for _, inst := range installations {
		lines = append(lines, fmt.Sprintf(
			"Name: %s\nVersion: %s\nArchitecture: %s\nInstallation Path: %s\n---",
			orNA(inst.Name), orNA(inst.Version), orNA(inst.Architecture), orNA(inst.InstallationPath)))
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// FormatCommandResponse flattens an MQSC command response into readable
// attribute lines.
//
// Description:
//
//	Handles both queue manager flavors. z/OS responses are framed by
//	CSQN205I: the frame lines are dropped and each remaining line loses
//	its 15-character message prefix. Distributed responses get echo
//	lines skipped (e.g. "1 : DISPLAY ..."), known AMQ header sentences
//	stripped, and multi-attribute lines split on runs of two or more
//	spaces so each attribute lands on its own line.
//
// Inputs:
//   - resp: The parsed command response. Nil is treated as empty.
//
// Outputs:
//   - string: One attribute per line, or a fixed success message when
//     the command produced no output.
func FormatCommandResponse(resp *CommandResponse) string {
	var lines []string
	if resp != nil {
		for _, record := range resp.CommandResponse {
			lines = append(lines, flattenRecord(record.Text)...)
		}
	}
	if len(lines) == 0 {
		return "Command executed successfully, but no objects matched or no diagnostic output was returned."
	}
	return strings.Join(lines, "\n")
}

func flattenRecord(text []string) []string {
	if len(text) == 0 {
		return nil
	}

	// z/OS frames the response with CSQN205I at the start and a trailer
	// at the end; each payload line carries a 15-char message id prefix.
	if strings.HasPrefix(text[0], "CSQN205I") {
		body := text[1:]
		if len(body) > 0 {
			body = body[:len(body)-1]
		}
		var out []string
		for _, line := range body {
			if len(line) > 15 {
				line = line[15:]
			}
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}

	var out []string
	for _, line := range text {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}

		// Skip command echoes like "1 : DISPLAY QLOCAL(...)".
		if unicode.IsDigit(rune(s[0])) && strings.Contains(s, " : ") {
			continue
		}

		for _, h := range stripHeaders {
			if strings.HasPrefix(s, h) {
				s = strings.TrimSpace(s[len(h):])
				break
			}
		}
		if s == "" {
			continue
		}

		for _, part := range attrSplitRE.Split(s, -1) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
