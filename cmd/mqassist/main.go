// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command mqassist is the IBM MQ fleet assistant.
//
// It answers operational questions about a fleet of queue managers by
// combining an LLM tool-calling loop with the MQ administrative REST API
// and a directory snapshot of object definitions.
//
// Usage:
//
//	mqassist ask "how deep is QL.IN.APP1?"
//	mqassist chat
//	mqassist resolve QL.IN.APP1 --intent depth
//	mqassist qmgrs
//	mqassist version
//	mqassist serve --port 8080
//
// Configuration comes from the environment:
//
//	MQ_URL_BASE, MQ_USER_NAME, MQ_PASSWORD  - MQ REST API connection
//	MQ_DUMP_PATH                            - directory snapshot file
//	MQ_ALLOWED_HOSTNAME_PREFIXES            - hostname gate, default "lod,loq,lot"
//	MQASSIST_PROVIDER, MQASSIST_MODEL       - LLM backend selection
//	ANTHROPIC_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/queueworks/mqassist/services/agent"
	"github.com/queueworks/mqassist/services/mq"
	"github.com/queueworks/mqassist/services/mq/directory"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mqassist",
	Short: "LLM-assisted IBM MQ fleet inspection",
	Long: `mqassist answers operational questions about an IBM MQ fleet.

It resolves queue names across queue managers, checks depths and status,
and runs read-oriented MQSC commands through the MQ administrative REST
API. Hostname gating keeps restricted systems out of reach.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(qmgrsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runtimeDeps bundles everything the subcommands need.
type runtimeDeps struct {
	cfg      agent.Config
	client   *mq.Client
	index    *directory.Index
	gate     *directory.Gate
	executor *agent.Executor
}

// buildDeps wires the MQ client, directory, gate, and executor from the
// environment. Shared by every subcommand that touches the fleet.
func buildDeps() (*runtimeDeps, error) {
	cfg, err := agent.LoadConfig()
	if err != nil {
		return nil, err
	}

	client, err := mq.NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	index := directory.NewIndex(cfg.SnapshotPath)
	gate := directory.NewGateFromEnv()

	slog.Debug("Runtime configured",
		slog.String("provider", cfg.Provider),
		slog.String("snapshot", cfg.SnapshotPath),
		slog.String("allowed_prefixes", strings.Join(gate.Prefixes(), ",")),
	)

	return &runtimeDeps{
		cfg:      cfg,
		client:   client,
		index:    index,
		gate:     gate,
		executor: agent.NewExecutor(client, index, gate),
	}, nil
}

// newSession creates an orchestrator session for the configured provider.
func (d *runtimeDeps) newSession() (*agent.Session, error) {
	provider, err := agent.NewProvider(d.cfg.ProviderConfig())
	if err != nil {
		return nil, err
	}
	return agent.NewSession(provider, d.executor, agent.SessionConfig{
		MaxIterations: d.cfg.MaxToolIterations,
		HistoryCap:    d.cfg.HistoryCap,
	}), nil
}
