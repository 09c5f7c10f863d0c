// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/queueworks/mqassist/services/mq/directory"
)

// recordedCall is one RunCommand invocation seen by the fake runner.
type recordedCall struct {
	Qmgr     string
	Command  string
	Hostname string
}

// fakeRunner records every dispatch and answers from a scripted table
// keyed by "qmgr|command". Unscripted calls return a generic display.
type fakeRunner struct {
	calls   []recordedCall
	outputs map[string]string
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) script(qmgr, command, output string) {
	f.outputs[qmgr+"|"+command] = output
}

func (f *fakeRunner) fail(qmgr, command string, err error) {
	f.errs[qmgr+"|"+command] = err
}

func (f *fakeRunner) RunCommand(ctx context.Context, qmgr, command, hostname string) (string, error) {
	f.calls = append(f.calls, recordedCall{Qmgr: qmgr, Command: command, Hostname: hostname})
	key := qmgr + "|" + command
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	if out, ok := f.outputs[key]; ok {
		return out, nil
	}
	return fmt.Sprintf("QUEUE(%s)", qmgr), nil
}

func testGate() *directory.Gate {
	return directory.NewGate([]string{"lod", "loq", "lot"})
}

func TestResolve_SingleManagerDepth(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.SOLO)"},
	})
	runner := newFakeRunner()
	runner.script("MQQMGR1", "DISPLAY QLOCAL(QL.SOLO) CURDEPTH", "QUEUE(QL.SOLO)\nCURDEPTH(7)")

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "ql.solo", IntentDepth)

	if result.Outcome != OutcomeResolved {
		t.Fatalf("Outcome = %q, want resolved", result.Outcome)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("commands issued = %d, want exactly 1", len(runner.calls))
	}
	if runner.calls[0].Hostname != "lodalhost" {
		t.Errorf("hostname = %q", runner.calls[0].Hostname)
	}
	if len(result.Commands) != 1 || result.Commands[0].QueueManager != "MQQMGR1" {
		t.Fatalf("Commands = %+v", result.Commands)
	}
	if result.Commands[0].Depth == nil || *result.Commands[0].Depth != 7 {
		t.Errorf("Depth = %v, want 7", result.Commands[0].Depth)
	}
}

func TestResolve_FanOutHitsEveryManager(t *testing.T) {
	// QL.IN.APP1 lives on two allowed managers; both must be commanded,
	// never a proper subset.
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
		{Hostname: "loqalhost", QueueManager: "MQQMGR2", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
	})
	runner := newFakeRunner()
	runner.script("MQQMGR1", "DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH", "CURDEPTH(3)")
	runner.script("MQQMGR2", "DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH", "CURDEPTH(9)")

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QL.IN.APP1", IntentDepth)

	if result.Outcome != OutcomeResolved {
		t.Fatalf("Outcome = %q, want resolved", result.Outcome)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("commands issued = %d, want 2", len(runner.calls))
	}
	if len(result.Commands) != 2 {
		t.Fatalf("aggregate has %d results, want 2", len(result.Commands))
	}
	depths := map[string]int{}
	for _, mr := range result.Commands {
		if mr.Depth == nil {
			t.Fatalf("missing depth for %s", mr.QueueManager)
		}
		depths[mr.QueueManager] = *mr.Depth
	}
	if depths["MQQMGR1"] != 3 || depths["MQQMGR2"] != 9 {
		t.Errorf("depths = %v", depths)
	}
}

func TestResolve_RestrictedOnlyNeverCommanded(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lopalhost", QueueManager: "MQPROD1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.PROD.ONLY)"},
	})
	runner := newFakeRunner()

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QL.PROD.ONLY", IntentDepth)

	if result.Outcome != OutcomeRestricted {
		t.Fatalf("Outcome = %q, want restricted (never not_found)", result.Outcome)
	}
	if len(runner.calls) != 0 {
		t.Errorf("restricted hosts received %d commands, want 0", len(runner.calls))
	}
	if len(result.RestrictedHosts) != 1 || result.RestrictedHosts[0].Hostname != "lopalhost" {
		t.Errorf("RestrictedHosts = %+v", result.RestrictedHosts)
	}
}

func TestResolve_PartiallyRestricted(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.MIXED)"},
		{Hostname: "lopalhost", QueueManager: "MQPROD1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.MIXED)"},
	})
	runner := newFakeRunner()

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QL.MIXED", IntentDepth)

	if result.Outcome != OutcomePartiallyRestricted {
		t.Fatalf("Outcome = %q, want partially_restricted", result.Outcome)
	}
	if len(result.AllowedHosts) != 1 || len(result.RestrictedHosts) != 1 {
		t.Errorf("hosts = %+v / %+v", result.AllowedHosts, result.RestrictedHosts)
	}
	for _, call := range runner.calls {
		if ok, _ := testGate().Allowed(call.Hostname); !ok {
			t.Errorf("command dispatched to restricted host %q", call.Hostname)
		}
	}
	if len(runner.calls) != 1 {
		t.Errorf("commands issued = %d, want 1 (allowed host only)", len(runner.calls))
	}
}

func TestResolve_AliasOneHop(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeAlias,
			Definition: "DEFINE QALIAS(QA.IN.APP1) TARGET(QL.IN.APP1)"},
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
	})
	runner := newFakeRunner()
	runner.script("MQQMGR1", "DISPLAY QALIAS(QA.IN.APP1)",
		"QUEUE(QA.IN.APP1)\nTYPE(QALIAS)\nTARGET(QL.IN.APP1)")
	runner.script("MQQMGR1", "DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH",
		"QUEUE(QL.IN.APP1)\nCURDEPTH(42)")

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QA.IN.APP1", IntentDepth)

	if result.Outcome != OutcomeResolved {
		t.Fatalf("Outcome = %q, want resolved", result.Outcome)
	}
	if len(result.AliasSteps) != 1 {
		t.Fatalf("AliasSteps = %+v, want 1", result.AliasSteps)
	}
	step := result.AliasSteps[0]
	if step.Alias != "QA.IN.APP1" || step.Target != "QL.IN.APP1" || step.QueueManager != "MQQMGR1" {
		t.Errorf("AliasSteps[0] = %+v", step)
	}

	if result.Target == nil {
		t.Fatal("Target resolution missing")
	}
	if result.Target.QueriedName != "QL.IN.APP1" {
		t.Errorf("Target.QueriedName = %q", result.Target.QueriedName)
	}
	if len(result.Target.Commands) != 1 || result.Target.Commands[0].Depth == nil ||
		*result.Target.Commands[0].Depth != 42 {
		t.Errorf("Target.Commands = %+v, want depth 42", result.Target.Commands)
	}

	// Exactly two command rounds: alias display then target depth.
	if len(runner.calls) != 2 {
		t.Fatalf("commands issued = %d, want 2: %+v", len(runner.calls), runner.calls)
	}
}

func TestResolve_AliasChainNotFollowed(t *testing.T) {
	// QA.ONE targets QA.TWO, itself an alias. The hop is taken once;
	// QA.TWO's own indirection must not be chased.
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeAlias,
			Definition: "DEFINE QALIAS(QA.ONE) TARGET(QA.TWO)"},
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeAlias,
			Definition: "DEFINE QALIAS(QA.TWO) TARGET(QA.ONE)"},
	})
	runner := newFakeRunner()
	runner.script("MQQMGR1", "DISPLAY QALIAS(QA.ONE)", "TARGET(QA.TWO)")
	runner.script("MQQMGR1", "DISPLAY QALIAS(QA.TWO)", "TARGET(QA.ONE)")

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QA.ONE", IntentDepth)

	if result.Target == nil {
		t.Fatal("expected one target hop")
	}
	if result.Target.Target != nil {
		t.Error("alias chain followed beyond one hop")
	}
	if len(result.Target.AliasSteps) != 0 {
		t.Errorf("second hop recorded alias steps: %+v", result.Target.AliasSteps)
	}
	// One display for QA.ONE, one for QA.TWO; the cycle must not recurse.
	if len(runner.calls) != 2 {
		t.Errorf("commands issued = %d, want 2: %+v", len(runner.calls), runner.calls)
	}
}

func TestResolve_AliasTargetFromSnapshotFallback(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeAlias,
			Definition: "DEFINE QALIAS(QA.IN.APP1) TARGET(QL.IN.APP1)"},
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
	})
	runner := newFakeRunner()
	// Live display output carries no TARGET attribute.
	runner.script("MQQMGR1", "DISPLAY QALIAS(QA.IN.APP1)", "QUEUE(QA.IN.APP1)")

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QA.IN.APP1", IntentDepth)

	if len(result.AliasSteps) != 1 || result.AliasSteps[0].Target != "QL.IN.APP1" {
		t.Errorf("AliasSteps = %+v, want snapshot-derived target", result.AliasSteps)
	}
}

func TestResolve_NotFound(t *testing.T) {
	ix := directory.NewStaticIndex(nil)
	runner := newFakeRunner()

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QL.NOWHERE", IntentDepth)

	if result.Outcome != OutcomeNotFound {
		t.Fatalf("Outcome = %q, want not_found", result.Outcome)
	}
	if len(runner.calls) != 0 {
		t.Errorf("commands issued = %d, want 0", len(runner.calls))
	}
}

func TestResolve_AmbiguousType(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeChannel,
			Definition: "DEFINE CHANNEL(QL.LOOKS.LIKE.QUEUE) CHLTYPE(SDR)"},
	})
	runner := newFakeRunner()

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QL.LOOKS.LIKE.QUEUE", IntentDepth)

	if result.Outcome != OutcomeAmbiguousType {
		t.Fatalf("Outcome = %q, want ambiguous_type", result.Outcome)
	}
	if len(result.FoundTypes) != 1 || result.FoundTypes[0] != directory.TypeChannel {
		t.Errorf("FoundTypes = %v", result.FoundTypes)
	}
	if !strings.Contains(result.Reason, "CHANNEL") {
		t.Errorf("Reason = %q, should name the found types", result.Reason)
	}
}

func TestResolve_ExistenceIssuesNoCommands(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
	})
	runner := newFakeRunner()

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QL.IN.APP1", IntentExistence)

	if result.Outcome != OutcomeResolved {
		t.Fatalf("Outcome = %q, want resolved", result.Outcome)
	}
	if len(runner.calls) != 0 {
		t.Errorf("existence intent issued %d commands, want 0", len(runner.calls))
	}
	if len(result.AllowedHosts) != 1 {
		t.Errorf("AllowedHosts = %+v", result.AllowedHosts)
	}
}

func TestResolve_PerManagerErrorKeepsAggregateComplete(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
		{Hostname: "loqalhost", QueueManager: "MQQMGR2", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
	})
	runner := newFakeRunner()
	runner.fail("MQQMGR1", "DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH", errors.New("connection refused"))
	runner.script("MQQMGR2", "DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH", "CURDEPTH(5)")

	r := New(ix, testGate(), runner)
	result := r.Resolve(context.Background(), "QL.IN.APP1", IntentDepth)

	if len(result.Commands) != 2 {
		t.Fatalf("aggregate has %d slots, want 2", len(result.Commands))
	}
	if result.Commands[0].Error == "" {
		t.Error("MQQMGR1 failure should land in its result slot")
	}
	if result.Commands[1].Depth == nil || *result.Commands[1].Depth != 5 {
		t.Errorf("MQQMGR2 result = %+v", result.Commands[1])
	}
}

func TestResolve_StatusIntent(t *testing.T) {
	ix := directory.NewStaticIndex([]directory.Entry{
		{Hostname: "lodalhost", QueueManager: "MQQMGR1", ObjectType: directory.TypeLocal,
			Definition: "DEFINE QLOCAL(QL.IN.APP1)"},
	})
	runner := newFakeRunner()

	r := New(ix, testGate(), runner)
	r.Resolve(context.Background(), "QL.IN.APP1", IntentStatus)

	if len(runner.calls) != 1 || runner.calls[0].Command != "DISPLAY QSTATUS(QL.IN.APP1)" {
		t.Errorf("calls = %+v", runner.calls)
	}
}
