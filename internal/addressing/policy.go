// Package addressing decides whether an inbound group-chat message is
// directed at the bot, and extracts the user-facing text from it.
package addressing

import (
	"regexp"
	"strings"

	"groupchat-agent/internal/domain"
)

// askPrefixRe matches the /ask command token, with an optional @botname
// suffix, at the start of the text.
var askPrefixRe = regexp.MustCompile(`(?i)^/ask(?:@\w+)?\s*`)

// ShouldRespond reports whether the bot is allowed to answer msg. Private
// chats are always eligible. Group chats require an explicit trigger: the
// /ask command, a direct reply to the bot, or an @mention of botUsername.
// An empty botUsername (identity lookup failed) disables mention matching
// only; the other triggers still apply.
func ShouldRespond(msg domain.InboundMessage, botUsername string) bool {
	if msg.ChatKind == domain.ChatPrivate {
		return true
	}
	if !msg.IsGroup() {
		return false
	}

	text := strings.TrimSpace(msg.Text)
	if askPrefixRe.MatchString(text) {
		return true
	}
	if msg.IsReplyToBot {
		return true
	}
	if botUsername != "" {
		mention := "@" + strings.ToLower(botUsername)
		if strings.Contains(strings.ToLower(text), mention) {
			return true
		}
	}
	return false
}

// ExtractUserText strips the /ask command token and any @botUsername mention
// from text and trims the remainder. An empty result means there is nothing
// to answer and the caller should treat the message as ineligible.
func ExtractUserText(text, botUsername string) string {
	cleaned := strings.TrimSpace(askPrefixRe.ReplaceAllString(strings.TrimSpace(text), ""))
	if botUsername != "" {
		mentionRe := regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(botUsername) + `\b`)
		cleaned = strings.TrimSpace(mentionRe.ReplaceAllString(cleaned, ""))
	}
	return cleaned
}
