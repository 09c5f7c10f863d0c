// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/queueworks/mqassist/services/agent"
	"github.com/queueworks/mqassist/services/mq"
	"github.com/queueworks/mqassist/services/mq/resolver"
	"github.com/spf13/cobra"
)

var (
	resolveIntent string
	resolveJSON   bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <queue-name>",
	Short: "Resolve a queue across the fleet without the LLM",
	Long: `Resolves a queue name deterministically: locates it in the directory
snapshot, fans out to every allowed queue manager hosting it, and reports
per-manager results. Aliases are followed one hop for depth queries.

Example:
  mqassist resolve QL.IN.APP1
  mqassist resolve QA.IN.APP1 --intent depth --json`,
	Args: cobra.ExactArgs(1),
	RunE: runResolveCommand,
}

var qmgrsCmd = &cobra.Command{
	Use:   "qmgrs",
	Short: "List queue managers and their state",
	Args:  cobra.NoArgs,
	RunE:  runQmgrsCommand,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show MQ installation details",
	Args:  cobra.NoArgs,
	RunE:  runVersionCommand,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveIntent, "intent", "depth", "Resolution intent: depth, status, or existence")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the structured result as JSON")
}

func runResolveCommand(cmd *cobra.Command, args []string) error {
	switch resolveIntent {
	case string(resolver.IntentDepth), string(resolver.IntentStatus), string(resolver.IntentExistence):
	default:
		return fmt.Errorf("invalid intent %q (valid: depth, status, existence)", resolveIntent)
	}

	deps, err := buildDeps()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := deps.executor.ResolveQueue(ctx, args[0], resolver.Intent(resolveIntent))

	if resolveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Print(agent.FormatResolution(result))
	return nil
}

func runQmgrsCommand(cmd *cobra.Command, _ []string) error {
	deps, err := buildDeps()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	managers, err := deps.client.ListManagers(ctx)
	if err != nil {
		return err
	}
	fmt.Println(mq.FormatManagers(managers))
	return nil
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	deps, err := buildDeps()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	installations, err := deps.client.Installations(ctx)
	if err != nil {
		return err
	}
	fmt.Println(mq.FormatInstallations(installations))
	return nil
}
