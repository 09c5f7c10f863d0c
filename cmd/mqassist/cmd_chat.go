// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/queueworks/mqassist/services/agent"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask the assistant a single question",
	Long: `Runs one question through the assistant and prints the answer.

Example:
  mqassist ask how deep is QL.IN.APP1
  mqassist ask "is MQQMGR2 running?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAskCommand,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Starts an interactive session with the assistant. History carries
across turns until you exit with "quit", "exit", or Ctrl-D.`,
	Args: cobra.NoArgs,
	RunE: runChatCommand,
}

func runAskCommand(cmd *cobra.Command, args []string) error {
	deps, err := buildDeps()
	if err != nil {
		return err
	}
	session, err := deps.newSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	question := strings.Join(args, " ")
	answer, usage, err := session.RunTurn(ctx, question)
	if err != nil && !errors.Is(err, agent.ErrMaxIterations) {
		return err
	}

	fmt.Println(answer)
	if verbose {
		printTurnDetail(session, usage.InputTokens, usage.OutputTokens)
	}
	return nil
}

func runChatCommand(cmd *cobra.Command, args []string) error {
	deps, err := buildDeps()
	if err != nil {
		return err
	}
	session, err := deps.newSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("MQ assistant (%s). Type 'exit' or 'quit' to leave.\n", deps.cfg.Provider)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		answer, usage, err := runOneTurn(ctx, session, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Println(answer)
		if verbose {
			printTurnDetail(session, usage.in, usage.out)
		}
	}
}

type turnUsage struct {
	in, out int
}

func runOneTurn(ctx context.Context, session *agent.Session, input string) (string, turnUsage, error) {
	answer, usage, err := session.RunTurn(ctx, input)
	if err != nil && !errors.Is(err, agent.ErrMaxIterations) {
		return "", turnUsage{}, err
	}
	return answer, turnUsage{in: usage.InputTokens, out: usage.OutputTokens}, nil
}

func printTurnDetail(session *agent.Session, inputTokens, outputTokens int) {
	fmt.Fprintf(os.Stderr, "[tokens: %d in / %d out]\n", inputTokens, outputTokens)
	for _, inv := range session.ToolLog() {
		fmt.Fprintf(os.Stderr, "[tool: %s %s]\n", inv.Name, inv.Arguments)
	}
}
