/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/HamedShams/sprint-audit/internal/repo"
	"github.com/HamedShams/sprint-audit/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type service interface {
	RunDaily(ctx context.Context, opts services.RunOptions) (*services.RunResult, error)
	GetLastRun(ctx context.Context) (*repo.LastRun, error)
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.svc.GetLastRun(c.Request.Context())
	switch {
	case errors.Is(err, repo.ErrNoRuns), errors.Is(err, services.ErrHistoryDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lr)
}

// RunNow queues a run detached from the request. ?mail=false skips delivery.
func (h *Handlers) RunNow(c *gin.Context) {
	sendMail := h.cfg.SendMail
	if c.Query("mail") == "false" {
		sendMail = false
	}
	go func() {
		_, err := h.svc.RunDaily(context.Background(), services.RunOptions{SendMail: sendMail})
		if errors.Is(err, services.ErrRunInProgress) {
			h.log.Info().Msg("admin run skipped: already running")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "send_mail": sendMail})
}
