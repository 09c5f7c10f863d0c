// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolver

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/queueworks/mqassist/services/mq/directory"
)

var (
	// Alias definitions carry TARGET(...) on distributed platforms and
	// TARGQ(...) on older ones.
	aliasTargetRE = regexp.MustCompile(`TARG(?:ET|Q)\(([^)]+)\)`)

	curdepthRE = regexp.MustCompile(`CURDEPTH\((\d+)\)`)
)

// BuildCommand returns the MQSC command for one intent against one object.
//
// Description:
//
//	Local queues hold messages, so depth questions become a CURDEPTH
//	display. Remote and alias queues hold no local messages; their depth
//	command displays the routing or indirection record instead (the
//	resolver chases alias targets separately). Status uses QSTATUS
//	regardless of type. Existence needs no command at all, the directory
//	match already answers it.
//
// Inputs:
//   - objectType: The directory object type (QLOCAL, QALIAS, QREMOTE, ...).
//   - intent: What the caller wants to know.
//   - name: The object name.
//
// Outputs:
//   - string: The MQSC command text.
//   - bool: False when the intent needs no command.
func BuildCommand(objectType string, intent Intent, name string) (string, bool) {
	switch intent {
	case IntentExistence:
		return "", false

	case IntentStatus:
		return fmt.Sprintf("DISPLAY QSTATUS(%s)", name), true

	case IntentDepth:
		switch objectType {
		case directory.TypeLocal:
			return fmt.Sprintf("DISPLAY QLOCAL(%s) CURDEPTH", name), true
		case directory.TypeAlias:
			return fmt.Sprintf("DISPLAY QALIAS(%s)", name), true
		case directory.TypeRemote:
			return fmt.Sprintf("DISPLAY QREMOTE(%s)", name), true
		default:
			return fmt.Sprintf("DISPLAY QUEUE(%s) CURDEPTH", name), true
		}
	}
	return "", false
}

// ExtractAliasTarget pulls the target queue name out of an alias
// definition display. Returns "" when no target attribute is present.
func ExtractAliasTarget(output string) string {
	m := aliasTargetRE.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractDepth pulls the current depth out of a queue display. The second
// return is false when the output carries no CURDEPTH attribute.
func ExtractDepth(output string) (int, bool) {
	m := curdepthRE.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
