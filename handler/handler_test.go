package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"groupchat-agent/internal/domain"
	"groupchat-agent/internal/usecase"
)

type mockResponder struct {
	outcome usecase.Outcome
	got     []domain.InboundMessage
}

func (m *mockResponder) Respond(_ context.Context, msg domain.InboundMessage) usecase.Outcome {
	m.got = append(m.got, msg)
	return m.outcome
}

type mockIdentity struct {
	name string
	err  error
}

func (m *mockIdentity) BotUsername(_ context.Context) (string, error) {
	return m.name, m.err
}

func newTestHandler(t *testing.T) (*Handler, *mockResponder) {
	t.Helper()
	responder := &mockResponder{outcome: usecase.OutcomeDone}
	h, err := NewHandler(responder, &mockIdentity{name: "contextbot"}, nil)
	require.NoError(t, err)
	return h, responder
}

func postEvent(body string) events.LambdaFunctionURLRequest {
	req := events.LambdaFunctionURLRequest{Body: body}
	req.RequestContext.HTTP.Method = http.MethodPost
	return req
}

const validUpdate = `{
	"update_id": 1,
	"message": {
		"message_id": 555,
		"from": {"id": 42, "username": "alice"},
		"chat": {"id": -100, "type": "group"},
		"text": "/ask what's 2+2?"
	}
}`

func requireAck(t *testing.T, res events.LambdaFunctionURLResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", res.Body)
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(nil, &mockIdentity{}, nil)
	require.Error(t, err)
	_, err = NewHandler(&mockResponder{}, nil, nil)
	require.Error(t, err)
}

func TestHandle_DispatchesValidUpdate(t *testing.T) {
	h, responder := newTestHandler(t)
	res, err := h.Handle(context.Background(), postEvent(validUpdate))
	requireAck(t, res, err)

	require.Len(t, responder.got, 1)
	require.Equal(t, int64(-100), responder.got[0].ChatID)
	require.Equal(t, int64(555), responder.got[0].MessageID)
}

func TestHandle_Base64Body(t *testing.T) {
	h, responder := newTestHandler(t)
	req := postEvent(base64.StdEncoding.EncodeToString([]byte(validUpdate)))
	req.IsBase64Encoded = true

	res, err := h.Handle(context.Background(), req)
	requireAck(t, res, err)
	require.Len(t, responder.got, 1)
}

func TestHandle_InvalidBase64Acked(t *testing.T) {
	h, responder := newTestHandler(t)
	req := postEvent("%%% not base64 %%%")
	req.IsBase64Encoded = true

	res, err := h.Handle(context.Background(), req)
	requireAck(t, res, err)
	require.Empty(t, responder.got)
}

func TestHandle_NonPostAcked(t *testing.T) {
	h, responder := newTestHandler(t)
	req := postEvent(validUpdate)
	req.RequestContext.HTTP.Method = http.MethodGet

	res, err := h.Handle(context.Background(), req)
	requireAck(t, res, err)
	require.Empty(t, responder.got)
}

func TestHandle_MalformedBodyAcked(t *testing.T) {
	h, responder := newTestHandler(t)
	res, err := h.Handle(context.Background(), postEvent("not json"))
	requireAck(t, res, err)
	require.Empty(t, responder.got)
}

func TestHandle_NonActionableUpdateAcked(t *testing.T) {
	h, responder := newTestHandler(t)
	res, err := h.Handle(context.Background(), postEvent(`{"update_id": 2}`))
	requireAck(t, res, err)
	require.Empty(t, responder.got)
}

func TestHandle_IdentityFailureStillDispatches(t *testing.T) {
	responder := &mockResponder{outcome: usecase.OutcomeDone}
	h, err := NewHandler(responder, &mockIdentity{err: errors.New("getMe failed")}, nil)
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), postEvent(validUpdate))
	requireAck(t, res, err)
	require.Len(t, responder.got, 1)
	require.False(t, responder.got[0].IsReplyToBot)
}

func TestHandle_IgnoredOutcomeStillAcked(t *testing.T) {
	responder := &mockResponder{outcome: usecase.OutcomeIgnored}
	h, err := NewHandler(responder, &mockIdentity{name: "contextbot"}, nil)
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), postEvent(validUpdate))
	requireAck(t, res, err)
}
