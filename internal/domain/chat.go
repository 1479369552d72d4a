package domain

// Roles persisted in the context store. Entries carrying any other role are
// excluded from completion-window assembly.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// BotAuthorID is the author sentinel for turns written by the bot itself.
// Telegram never issues user id 0.
const BotAuthorID int64 = 0

// ChatMessage is the provider-agnostic chat message shape used by the
// LLM integration.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
