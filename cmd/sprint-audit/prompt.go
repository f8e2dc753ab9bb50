/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

// promptCredentials asks for the Jira login on the terminal. The password is not echoed.
func promptCredentials(cfg *config.Config) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cyan("Jira username: "),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	if cfg.JiraUsername == "" {
		line, err := rl.Readline()
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		cfg.JiraUsername = strings.TrimSpace(line)
	}
	pass, err := rl.ReadPassword(cyan("Jira password: "))
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	cfg.JiraPassword = string(pass)
	if !cfg.HasCredentials() {
		return errors.New("jira username and password are required")
	}
	return nil
}
