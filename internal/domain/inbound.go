package domain

import "strings"

// Chat kinds reported by the Telegram Bot API.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

// InboundMessage is a validated, normalized inbound chat message. Constructed
// once per webhook delivery and discarded after the orchestration run; only
// the derived ContextEntry is persisted.
type InboundMessage struct {
	ChatID            int64
	ChatKind          string
	AuthorID          int64
	AuthorName        string
	MessageID         int64
	Text              string
	ReplyToAuthorName string
	IsReplyToBot      bool
}

// IsGroup reports whether the message arrived in a group-like chat.
func (m InboundMessage) IsGroup() bool {
	return m.ChatKind == ChatGroup || m.ChatKind == ChatSupergroup
}

// Valid reports whether the message carries everything orchestration needs.
func (m InboundMessage) Valid() bool {
	return m.ChatID != 0 && m.MessageID != 0 && m.ChatKind != "" && strings.TrimSpace(m.Text) != ""
}
