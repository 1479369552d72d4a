package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"groupchat-agent/internal/domain"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) GetToken(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.token, f.err
}

func newTestClient(t *testing.T, srvURL string) (*Client, *fakeTokens) {
	t.Helper()
	tokens := &fakeTokens{token: "bot-token"}
	c, err := NewClient(tokens, "/prefix", WithBaseURL(srvURL))
	require.NoError(t, err)
	return c, tokens
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/prefix")
	require.Error(t, err)
	_, err = NewClient(&fakeTokens{}, "  ")
	require.Error(t, err)
}

func TestBotUsername_ResolvesAndCaches(t *testing.T) {
	var getMeCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botbot-token/getMe", r.URL.Path)
		getMeCalls++
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":99,"is_bot":true,"username":"contextbot"}}`)
	}))
	defer srv.Close()

	c, tokens := newTestClient(t, srv.URL)

	name, err := c.BotUsername(context.Background())
	require.NoError(t, err)
	require.Equal(t, "contextbot", name)

	name, err = c.BotUsername(context.Background())
	require.NoError(t, err)
	require.Equal(t, "contextbot", name)
	require.Equal(t, 1, getMeCalls)
	require.Equal(t, 1, tokens.calls)
}

func TestBotUsername_FailureNotCached(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"username":"contextbot"}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)

	_, err := c.BotUsername(context.Background())
	require.Error(t, err)

	name, err := c.BotUsername(context.Background())
	require.NoError(t, err)
	require.Equal(t, "contextbot", name)
}

func TestBotUsername_TokenError(t *testing.T) {
	tokens := &fakeTokens{err: errors.New("ssm down")}
	c, err := NewClient(tokens, "/prefix")
	require.NoError(t, err)
	_, err = c.BotUsername(context.Background())
	require.Error(t, err)
}

func TestSendMessage_ThreadedReply(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":556}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	require.NoError(t, c.SendMessage(context.Background(), -100, "4", 555))

	var req map[string]any
	require.NoError(t, json.Unmarshal([]byte(gotBody), &req))
	require.EqualValues(t, -100, req["chat_id"])
	require.Equal(t, "4", req["text"])
	require.EqualValues(t, 555, req["reply_to_message_id"])
}

func TestSendMessage_UnthreadedOmitsReplyField(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	require.NoError(t, c.SendMessage(context.Background(), 7, "hi", 0))
	require.NotContains(t, gotBody, "reply_to_message_id")
}

func TestSendMessage_APINotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	err := c.SendMessage(context.Background(), 7, "hi", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ok=false")
}

func validUpdate() string {
	return `{
		"update_id": 1,
		"message": {
			"message_id": 555,
			"from": {"id": 42, "username": "alice"},
			"chat": {"id": -100, "type": "group"},
			"text": "/ask what's 2+2?"
		}
	}`
}

func TestParseUpdate_HappyPath(t *testing.T) {
	msg, err := ParseUpdate([]byte(validUpdate()), "contextbot")
	require.NoError(t, err)
	require.Equal(t, domain.InboundMessage{
		ChatID:     -100,
		ChatKind:   domain.ChatGroup,
		AuthorID:   42,
		AuthorName: "alice",
		MessageID:  555,
		Text:       "/ask what's 2+2?",
	}, msg)
	require.True(t, msg.Valid())
}

func TestParseUpdate_ReplyToBot(t *testing.T) {
	raw := `{
		"message": {
			"message_id": 10,
			"from": {"id": 42, "username": "alice"},
			"chat": {"id": -100, "type": "supergroup"},
			"text": "and then?",
			"reply_to_message": {
				"message_id": 9,
				"from": {"id": 99, "username": "ContextBot"}
			}
		}
	}`
	msg, err := ParseUpdate([]byte(raw), "contextbot")
	require.NoError(t, err)
	require.True(t, msg.IsReplyToBot)
	require.Equal(t, "ContextBot", msg.ReplyToAuthorName)
}

func TestParseUpdate_ReplyToSomeoneElse(t *testing.T) {
	raw := `{
		"message": {
			"message_id": 10,
			"from": {"id": 42, "username": "alice"},
			"chat": {"id": -100, "type": "group"},
			"text": "sure",
			"reply_to_message": {"message_id": 9, "from": {"id": 43, "username": "bob"}}
		}
	}`
	msg, err := ParseUpdate([]byte(raw), "contextbot")
	require.NoError(t, err)
	require.False(t, msg.IsReplyToBot)
}

func TestParseUpdate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no_message", `{"update_id": 1}`},
		{"empty_text", `{"message":{"message_id":1,"from":{"id":42},"chat":{"id":7,"type":"private"},"text":"   "}}`},
		{"no_text", `{"message":{"message_id":1,"from":{"id":42},"chat":{"id":7,"type":"private"}}}`},
		{"no_chat", `{"message":{"message_id":1,"from":{"id":42},"text":"hi"}}`},
		{"no_chat_id", `{"message":{"message_id":1,"from":{"id":42},"chat":{"type":"private"},"text":"hi"}}`},
		{"no_chat_type", `{"message":{"message_id":1,"from":{"id":42},"chat":{"id":7},"text":"hi"}}`},
		{"no_sender", `{"message":{"message_id":1,"chat":{"id":7,"type":"private"},"text":"hi"}}`},
		{"no_message_id", `{"message":{"from":{"id":42},"chat":{"id":7,"type":"private"},"text":"hi"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseUpdate([]byte(tc.raw), "contextbot")
			require.ErrorIs(t, err, ErrNotActionable)
		})
	}
}

func TestParseUpdate_InvalidJSON(t *testing.T) {
	_, err := ParseUpdate([]byte("not json"), "contextbot")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotActionable)
}
