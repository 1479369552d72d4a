// Package handler adapts Lambda Function URL events to the conversation
// orchestrator. Every path acknowledges 200 "ok" so the upstream webhook
// never retry-storms on internal failures.
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"groupchat-agent/internal/domain"
	"groupchat-agent/internal/integrations/telegram"
	"groupchat-agent/internal/usecase"
)

// Responder runs one inbound message through the conversation pipeline.
type Responder interface {
	Respond(ctx context.Context, msg domain.InboundMessage) usecase.Outcome
}

// IdentityResolver looks up the bot's own username for update parsing.
type IdentityResolver interface {
	BotUsername(ctx context.Context) (string, error)
}

type Handler struct {
	responder Responder
	identity  IdentityResolver
	logger    *slog.Logger
}

func NewHandler(responder Responder, identity IdentityResolver, logger *slog.Logger) (*Handler, error) {
	if responder == nil {
		return nil, errors.New("handler: responder must not be nil")
	}
	if identity == nil {
		return nil, errors.New("handler: identity resolver must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{responder: responder, identity: identity, logger: logger}, nil
}

// ack is the single response shape. The error return is always nil; failing
// the invocation would make Telegram redeliver the update.
func ack() (events.LambdaFunctionURLResponse, error) {
	return events.LambdaFunctionURLResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"content-type": "text/plain"},
		Body:       "ok",
	}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	log := h.logger.With("request_id", uuid.NewString())

	if method := req.RequestContext.HTTP.Method; method != "" && method != http.MethodPost {
		return ack()
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			log.Warn("base64 body decode failed", "err", err)
			return ack()
		}
		body = decoded
	}

	botName, err := h.identity.BotUsername(ctx)
	if err != nil {
		log.Warn("bot identity lookup failed", "err", err)
		botName = ""
	}

	msg, err := telegram.ParseUpdate(body, botName)
	if err != nil {
		if !errors.Is(err, telegram.ErrNotActionable) {
			log.Warn("update parse failed", "err", err)
		}
		return ack()
	}

	outcome := h.responder.Respond(ctx, msg)
	log.Info("update processed", "chat_id", msg.ChatID, "message_id", msg.MessageID, "outcome", outcome)
	return ack()
}
