/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/rs/zerolog"
)

// maxMessage stays below Telegram's 4096 character limit.
const maxMessage = 3800

type Client struct {
	token   string
	chatIDs []int64
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		token:   cfg.TelegramToken,
		chatIDs: cfg.TelegramChatIDs,
		baseURL: "https://api.telegram.org",
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Enabled reports whether a token and at least one chat are configured.
func (c *Client) Enabled() bool { return c.token != "" && len(c.chatIDs) > 0 }

// Broadcast posts text to every configured chat, split into message-sized chunks.
func (c *Client) Broadcast(ctx context.Context, text string) error {
	for _, chat := range c.chatIDs {
		for _, part := range chunkText(text, maxMessage) {
			if err := c.SendMessagePlain(ctx, chat, part); err != nil {
				return err
			}
		}
	}
	return nil
}

// SendMessagePlain sends without parse_mode to avoid markdown parsing errors
func (c *Client) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	body := map[string]any{"chat_id": chatID, "text": text, "disable_web_page_preview": true}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram sendMessage status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}
	c.log.Debug().Int64("chat", chatID).Int("len", len(text)).Msg("telegram message sent")
	return nil
}

// chunkText splits text into chunks of up to max runes, attempting to break on line boundaries.
func chunkText(s string, max int) []string {
	if max <= 0 {
		return []string{s}
	}
	var chunks []string
	lines := strings.Split(s, "\n")
	cur := ""
	curlen := 0
	for _, ln := range lines {
		rl := len([]rune(ln))
		// If a single line exceeds max, hard-split the line
		if rl > max {
			if curlen > 0 {
				chunks = append(chunks, cur)
				cur = ""
				curlen = 0
			}
			r := []rune(ln)
			for i := 0; i < rl; i += max {
				j := i + max
				if j > rl {
					j = rl
				}
				chunks = append(chunks, string(r[i:j]))
			}
			continue
		}
		extra := rl
		if curlen > 0 {
			extra++
		}
		if curlen+extra > max {
			chunks = append(chunks, cur)
			cur = ln
			curlen = rl
		} else if curlen == 0 {
			cur = ln
			curlen = rl
		} else {
			cur += "\n" + ln
			curlen += extra
		}
	}
	if curlen > 0 {
		chunks = append(chunks, cur)
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}
