/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"os"

	"github.com/HamedShams/sprint-audit/internal/adapters/jira"
	"github.com/HamedShams/sprint-audit/internal/adapters/mail"
	"github.com/HamedShams/sprint-audit/internal/adapters/telegram"
	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/HamedShams/sprint-audit/internal/logger"
	"github.com/HamedShams/sprint-audit/internal/services"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	sendMail   bool
	developers []string
	vacation   []string
	quiet      bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "sprint-audit",
		Short: "Daily backlog compliance audit for a sprint team",
		Long: `Runs the daily compliance rules against Jira for every developer on the
roster, prints the report to stdout and optionally mails it to everyone
with a finding.

Examples:
  # Print today's report
  sprint-audit

  # Mail it, overriding the roster and vacation list
  sprint-audit -m -d alice,bob,carol -v carol`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if !cfg.HasCredentials() {
				if err := promptCredentials(&cfg); err != nil {
					return err
				}
			}
			log := logger.New(cfg)
			var opts []services.Option
			if !f.quiet {
				opts = append(opts, services.WithNarrator(newColorNarrator(os.Stderr)))
			}
			svc := newService(cfg, log, nil, opts...)
			_, err = svc.RunDaily(cmd.Context(), services.RunOptions{SendMail: f.sendMail})
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML config file (env vars override it)")
	cmd.PersistentFlags().StringSliceVarP(&f.developers, "developers", "d", nil, "developer roster, overrides TEAM_DEVELOPERS")
	cmd.PersistentFlags().StringSliceVarP(&f.vacation, "vacation", "v", nil, "developers on vacation, overrides TEAM_VACATION")
	cmd.Flags().BoolVarP(&f.sendMail, "send-mail", "m", false, "mail the report to every developer with a finding")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not narrate findings on stderr")

	cmd.AddCommand(newServeCmd(f))
	return cmd
}

// loadConfig reads the config file and environment, then applies flag overrides.
func loadConfig(f *rootFlags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if len(f.developers) > 0 {
		cfg.Developers = f.developers
	}
	if len(f.vacation) > 0 {
		cfg.Vacation = f.vacation
	}
	return cfg, cfg.Validate()
}

// newService wires the adapters. store may be nil.
func newService(cfg config.Config, log zerolog.Logger, store services.RunStore, opts ...services.Option) *services.Service {
	src := jira.NewSource(jira.NewClient(cfg, log), log)
	return services.New(cfg, log, store, src, mail.NewMailer(cfg, log), telegram.NewClient(cfg, log), opts...)
}
