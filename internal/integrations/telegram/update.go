package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"groupchat-agent/internal/domain"
)

// ErrNotActionable marks webhook payloads that parse as JSON but do not carry
// a text message the bot could answer (edits, joins, stickers, and so on).
var ErrNotActionable = errors.New("telegram: update is not an actionable message")

// Wire shapes of a Telegram webhook update. Required identifiers are pointers
// so a missing field is distinguishable from a zero value.
type update struct {
	UpdateID int64        `json:"update_id"`
	Message  *wireMessage `json:"message"`
}

type wireMessage struct {
	MessageID      *int64       `json:"message_id"`
	From           *wireUser    `json:"from"`
	Chat           *wireChat    `json:"chat"`
	Text           string       `json:"text"`
	ReplyToMessage *wireMessage `json:"reply_to_message"`
}

type wireUser struct {
	ID       *int64 `json:"id"`
	Username string `json:"username"`
}

type wireChat struct {
	ID   *int64 `json:"id"`
	Type string `json:"type"`
}

// ParseUpdate validates a webhook body into a normalized InboundMessage.
// Malformed or non-message updates are rejected outright with
// ErrNotActionable rather than partially accepted.
func ParseUpdate(raw []byte, botUsername string) (domain.InboundMessage, error) {
	var u update
	if err := json.Unmarshal(raw, &u); err != nil {
		return domain.InboundMessage{}, fmt.Errorf("telegram: decode update: %w", err)
	}

	msg := u.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return domain.InboundMessage{}, ErrNotActionable
	}
	if msg.Chat == nil || msg.Chat.ID == nil || msg.Chat.Type == "" {
		return domain.InboundMessage{}, ErrNotActionable
	}
	if msg.From == nil || msg.From.ID == nil || msg.MessageID == nil {
		return domain.InboundMessage{}, ErrNotActionable
	}

	var replyToAuthor string
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		replyToAuthor = msg.ReplyToMessage.From.Username
	}
	isReplyToBot := botUsername != "" && replyToAuthor != "" &&
		strings.EqualFold(replyToAuthor, botUsername)

	return domain.InboundMessage{
		ChatID:            *msg.Chat.ID,
		ChatKind:          msg.Chat.Type,
		AuthorID:          *msg.From.ID,
		AuthorName:        msg.From.Username,
		MessageID:         *msg.MessageID,
		Text:              msg.Text,
		ReplyToAuthorName: replyToAuthor,
		IsReplyToBot:      isReplyToBot,
	}, nil
}
