package controllers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"telegram-library/bot"
	"telegram-library/configs"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	secretHeader  = "X-Telegram-Bot-Api-Secret-Token"
	submitTimeout = 5 * time.Second
)

// Submitter accepts decoded events for asynchronous handling.
type Submitter interface {
	Submit(ctx context.Context, ev bot.Event) bool
}

// WebhookController acknowledges every well-authenticated update with 200
// and hands it off; handling outcomes never reach the transport.
type WebhookController struct {
	queue  Submitter
	secret string
	log    zerolog.Logger
}

func NewWebhookController(queue Submitter, secret string) *WebhookController {
	return &WebhookController{queue: queue, secret: secret, log: configs.Logger("webhook")}
}

func (w *WebhookController) Receive(c *gin.Context) {
	if w.secret != "" {
		got := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(w.secret)) != 1 {
			c.String(http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		w.log.Warn().Err(err).Msg("Undecodable update")
		c.String(http.StatusOK, "OK")
		return
	}

	if ev, ok := bot.Decode(update); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), submitTimeout)
		w.queue.Submit(ctx, ev)
		cancel()
	} else {
		w.log.Debug().Int("update_id", update.UpdateID).Msg("Ignoring update kind")
	}
	c.String(http.StatusOK, "OK")
}

// SetupRoutes registers the webhook plus health, readiness and metrics.
func SetupRoutes(router *gin.Engine, webhookPath string, webhook *WebhookController, ready func() bool) {
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.GET("/readyz", func(c *gin.Context) {
		if ready == nil || !ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if webhook != nil {
		router.POST(webhookPath, webhook.Receive)
	}
}
