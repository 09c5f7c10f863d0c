// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"strings"

	"github.com/queueworks/mqassist/services/mq/resolver"
)

// FormatResolution renders a resolution result as operator-readable text.
//
// Description:
//
//	Terminal classifications (not found, restricted, ambiguous type)
//	render their reason directly. Successful resolutions list every
//	allowed manager with its command outcome, tag restricted hosts
//	explicitly, and for aliases show the alias-to-target mapping
//	followed by the target's own resolution.
func FormatResolution(result *resolver.Result) string {
	if result == nil {
		return ""
	}

	switch result.Outcome {
	case resolver.OutcomeNotFound, resolver.OutcomeRestricted, resolver.OutcomeAmbiguousType:
		return result.Reason
	}

	var b strings.Builder
	typeLabel := result.InferredType
	if typeLabel == "" {
		typeLabel = "QUEUE"
	}
	fmt.Fprintf(&b, "%s (%s) found on %d queue manager(s):\n",
		result.QueriedName, typeLabel, len(result.AllowedHosts))

	for _, mr := range result.Commands {
		b.WriteString(formatManagerResult(mr))
	}
	for _, ref := range result.RestrictedHosts {
		fmt.Fprintf(&b, "  %s [RESTRICTED: %s]: no command issued\n", ref.QueueManager, ref.Hostname)
	}

	for _, step := range result.AliasSteps {
		fmt.Fprintf(&b, "%s is an alias for %s (on %s)\n", step.Alias, step.Target, step.QueueManager)
	}
	if result.Target != nil {
		b.WriteString(FormatResolution(result.Target))
	}

	return b.String()
}

func formatManagerResult(mr resolver.ManagerResult) string {
	switch {
	case mr.Error != "":
		return fmt.Sprintf("  %s [%s]: error: %s\n", mr.QueueManager, mr.Hostname, mr.Error)
	case mr.Depth != nil:
		return fmt.Sprintf("  %s [%s]: CURDEPTH=%d\n", mr.QueueManager, mr.Hostname, *mr.Depth)
	case mr.Output != "":
		return fmt.Sprintf("  %s [%s]: %s\n", mr.QueueManager, mr.Hostname, firstLine(mr.Output))
	default:
		return fmt.Sprintf("  %s [%s]\n", mr.QueueManager, mr.Hostname)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
