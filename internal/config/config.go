/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	AppEnv   string `yaml:"app_env" env:"APP_ENV" env-default:"dev"`
	TZ       string `yaml:"tz" env:"APP_TZ" env-default:"Local"`
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`

	DBDSN string `yaml:"db_dsn" env:"DB_DSN"`

	JiraBaseURL    string        `yaml:"jira_base_url" env:"JIRA_BASE_URL"`
	JiraPAT        string        `yaml:"jira_pat" env:"JIRA_PAT"`
	JiraUsername   string        `yaml:"jira_username" env:"JIRA_USERNAME"`
	JiraPassword   string        `yaml:"jira_password" env:"JIRA_PASSWORD"`
	JiraProject    string        `yaml:"jira_project" env:"JIRA_PROJECT" env-default:"APPLINK"`
	JiraAPIVersion string        `yaml:"jira_api_version" env:"JIRA_API_VERSION" env-default:"2"`
	JiraRPS        float64       `yaml:"jira_rps" env:"JIRA_RPS" env-default:"10"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"15s"`

	Sprint           string   `yaml:"sprint" env:"SPRINT"`
	Developers       []string `yaml:"developers" env:"TEAM_DEVELOPERS" env-separator:","`
	Vacation         []string `yaml:"vacation" env:"TEAM_VACATION" env-separator:","`
	VacationIssueKey string   `yaml:"vacation_issue_key" env:"VACATION_ISSUE_KEY"`
	WorklogGroup     string   `yaml:"worklog_group" env:"WORKLOG_GROUP" env-default:"APPLINK Developers"`
	BacklogVersion   string   `yaml:"backlog_version" env:"BACKLOG_VERSION" env-default:"Backlog"`
	ExcludeLabel     string   `yaml:"exclude_label" env:"EXCLUDE_LABEL" env-default:"exclude_from_metrics"`
	RuleConcurrency  int      `yaml:"rule_concurrency" env:"RULE_CONCURRENCY" env-default:"1"`

	MailDomain  string `yaml:"mail_domain" env:"MAIL_DOMAIN" env-default:"example.com"`
	MailFrom    string `yaml:"mail_from" env:"MAIL_FROM"`
	MailSubject string `yaml:"mail_subject" env:"MAIL_SUBJECT" env-default:"Metric fails WARNING"`
	SMTPAddr    string `yaml:"smtp_addr" env:"SMTP_ADDR" env-default:"localhost:25"`

	TelegramToken   string  `yaml:"telegram_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatIDs []int64 `yaml:"telegram_chat_ids" env:"TELEGRAM_CHAT_IDS" env-separator:","`

	// Scheduled and admin-triggered runs only. The CLI uses --send-mail.
	DailyCron string `yaml:"daily_cron" env:"CRON_SPEC" env-default:"0 9 * * MON-FRI"`
	SendMail  bool   `yaml:"send_mail" env:"SEND_MAIL" env-default:"true"`
}

// Load reads path (YAML) when given, then the environment on top of it.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.Developers = trimAll(cfg.Developers)
	cfg.Vacation = trimAll(cfg.Vacation)

	// set global timezone if available
	if cfg.TZ != "" && cfg.TZ != "Local" {
		if loc, err := time.LoadLocation(cfg.TZ); err == nil {
			time.Local = loc
		} else {
			log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
		}
	}
	return cfg, nil
}

// MustLoad is Load that exits on error.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("cannot read config %q: %s", path, err)
	}
	return cfg
}

// Validate reports settings a run cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JiraBaseURL) == "" {
		errs = append(errs, errors.New("JIRA_BASE_URL is empty"))
	}
	if strings.TrimSpace(c.Sprint) == "" {
		errs = append(errs, errors.New("SPRINT is empty"))
	}
	if len(c.Developers) == 0 {
		errs = append(errs, errors.New("TEAM_DEVELOPERS is empty"))
	}
	return errors.Join(errs...)
}

// HasCredentials reports whether Jira auth is configured.
func (c Config) HasCredentials() bool {
	return c.JiraPAT != "" || (c.JiraUsername != "" && c.JiraPassword != "")
}

// Sender is the mail From address: MailFrom, or the Jira user at MailDomain.
func (c Config) Sender() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return c.JiraUsername + "@" + c.MailDomain
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
