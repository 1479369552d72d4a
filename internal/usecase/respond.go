package usecase

import (
	"context"
	"errors"
	"log/slog"

	"groupchat-agent/internal/addressing"
	"groupchat-agent/internal/domain"
)

const (
	minWindowSize = 1
	maxWindowSize = 200

	// fallbackReply is sent verbatim when the completion backend fails or
	// returns nothing usable.
	fallbackReply = "Inference error. Try again."
)

// ContextStore is the bounded per-conversation turn log.
type ContextStore interface {
	Append(ctx context.Context, chatID, authorID int64, role, content string, seq int64) error
	Trim(ctx context.Context, chatID int64, keepLastN int) error
	ReadWindow(ctx context.Context, chatID int64, limit int) ([]domain.ContextEntry, error)
}

// TrainingLog is the fire-and-forget exchange sink.
type TrainingLog interface {
	Record(ctx context.Context, rec domain.TrainingRecord) error
}

// Completer produces a reply from the conversation window.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, window []domain.ContextEntry) (string, error)
}

// Sender delivers a reply to a chat, optionally threaded to a message.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyToMessageID int64) error
}

// IdentityResolver looks up the bot's own username.
type IdentityResolver interface {
	BotUsername(ctx context.Context) (string, error)
}

// RespondService runs one inbound message through the full turn: addressing,
// context bookkeeping, completion, and delivery. Every side-effecting step is
// isolated so partial failure degrades the turn instead of aborting it.
type RespondService struct {
	store        ContextStore
	trainingLog  TrainingLog
	completer    Completer
	sender       Sender
	identity     IdentityResolver
	windowSize   int
	systemPrompt string
	logger       *slog.Logger
}

func NewRespondService(
	store ContextStore,
	trainingLog TrainingLog,
	completer Completer,
	sender Sender,
	identity IdentityResolver,
	windowSize int,
	systemPrompt string,
	logger *slog.Logger,
) (*RespondService, error) {
	if store == nil {
		return nil, errors.New("usecase: context store must not be nil")
	}
	if trainingLog == nil {
		return nil, errors.New("usecase: training log must not be nil")
	}
	if completer == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if identity == nil {
		return nil, errors.New("usecase: identity resolver must not be nil")
	}
	if windowSize < minWindowSize || windowSize > maxWindowSize {
		return nil, errors.New("usecase: window size must be between 1 and 200")
	}
	if systemPrompt == "" {
		return nil, errors.New("usecase: system prompt must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RespondService{
		store:        store,
		trainingLog:  trainingLog,
		completer:    completer,
		sender:       sender,
		identity:     identity,
		windowSize:   windowSize,
		systemPrompt: systemPrompt,
		logger:       logger,
	}, nil
}

// Respond processes one inbound message end to end. Storage, completion, and
// delivery failures are logged and degraded per step; none of them abort the
// turn, and the caller always acknowledges the webhook regardless of the
// returned outcome.
func (s *RespondService) Respond(ctx context.Context, msg domain.InboundMessage) Outcome {
	if !msg.Valid() {
		return OutcomeMalformed
	}
	log := s.logger.With("chat_id", msg.ChatID, "message_id", msg.MessageID)

	botName, err := s.identity.BotUsername(ctx)
	if err != nil {
		// Mention-based addressing degrades; command and reply triggers
		// still work with an empty identity.
		log.Warn("bot identity lookup failed", "failure", failureIdentity, "err", err)
		botName = ""
	}

	if !addressing.ShouldRespond(msg, botName) {
		return OutcomeIgnored
	}
	userText := addressing.ExtractUserText(msg.Text, botName)
	if userText == "" {
		return OutcomeIgnored
	}

	if err := s.store.Append(ctx, msg.ChatID, msg.AuthorID, domain.RoleUser, userText, msg.MessageID); err != nil {
		log.Warn("user turn append failed", "failure", failureStorage, "err", err)
	}
	if err := s.store.Trim(ctx, msg.ChatID, s.windowSize); err != nil {
		log.Warn("context trim failed", "failure", failureStorage, "err", err)
	}
	s.record(ctx, log, domain.TrainingRecord{
		ChatID:   msg.ChatID,
		AuthorID: msg.AuthorID,
		Username: msg.AuthorName,
		IsGroup:  msg.IsGroup(),
		UserText: userText,
		Sequence: msg.MessageID,
		Role:     domain.RoleUser,
	})

	window, err := s.store.ReadWindow(ctx, msg.ChatID, s.windowSize)
	if err != nil {
		// Proceed with an empty window rather than dropping the turn.
		log.Warn("window read failed", "failure", failureStorage, "err", err)
		window = nil
	}

	reply, err := s.completer.Complete(ctx, s.systemPrompt, window)
	if err != nil {
		log.Warn("completion failed", "failure", failureCompletion, "err", err)
		reply = fallbackReply
	}

	var replyTo int64
	if msg.IsGroup() {
		replyTo = msg.MessageID
	}
	if err := s.sender.SendMessage(ctx, msg.ChatID, reply, replyTo); err != nil {
		// History still records the reply so context stays consistent even
		// when delivery failed.
		log.Warn("reply delivery failed", "failure", failureSend, "err", err)
	}

	assistantSeq := msg.MessageID + 1
	if err := s.store.Append(ctx, msg.ChatID, domain.BotAuthorID, domain.RoleAssistant, reply, assistantSeq); err != nil {
		log.Warn("assistant turn append failed", "failure", failureStorage, "err", err)
	}
	if err := s.store.Trim(ctx, msg.ChatID, s.windowSize); err != nil {
		log.Warn("context trim failed", "failure", failureStorage, "err", err)
	}
	s.record(ctx, log, domain.TrainingRecord{
		ChatID:   msg.ChatID,
		AuthorID: domain.BotAuthorID,
		Username: botName,
		IsGroup:  msg.IsGroup(),
		BotReply: reply,
		Sequence: assistantSeq,
		Role:     domain.RoleAssistant,
	})

	return OutcomeDone
}

func (s *RespondService) record(ctx context.Context, log *slog.Logger, rec domain.TrainingRecord) {
	if err := s.trainingLog.Record(ctx, rec); err != nil {
		log.Warn("training log write failed", "failure", failureStorage, "err", err)
	}
}
