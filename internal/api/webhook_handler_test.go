package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrics-catalog-service/internal/conversation"
)

type recordingBot struct {
	mu     sync.Mutex
	events []conversation.Event
	err    error
}

func (b *recordingBot) Handle(_ context.Context, ev conversation.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

type recordingUpdates struct {
	updates []tgbotapi.Update
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, u tgbotapi.Update) {
	r.updates = append(r.updates, u)
}

func setupWebhookServer(t *testing.T, h *WebhookHandler) *httptest.Server {
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func readAll(t *testing.T, res *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestWebhookHandler_Verify(t *testing.T) {
	hook := &GraphWebhook{Bot: &recordingBot{}, VerifyToken: "s3cret"}
	server := setupWebhookServer(t, NewWebhookHandler(hook, hook, nil, 0))

	for _, path := range []string{"/api/messenger/webhook", "/api/whatsapp/webhook"} {
		res, err := http.Get(server.URL + path + "?hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=12345")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Equal(t, "12345", readAll(t, res))
		res.Body.Close()

		res, err = http.Get(server.URL + path + "?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, res.StatusCode, path)
		res.Body.Close()
	}
}

func TestWebhookHandler_Verify_EmptyTokenRejects(t *testing.T) {
	server := setupWebhookServer(t, NewWebhookHandler(&GraphWebhook{Bot: &recordingBot{}}, nil, nil, 0))

	res, err := http.Get(server.URL + "/api/messenger/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=1")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestWebhookHandler_MessengerDelivery(t *testing.T) {
	bot := &recordingBot{}
	server := setupWebhookServer(t, NewWebhookHandler(&GraphWebhook{Bot: bot, VerifyToken: "t"}, nil, nil, 0))

	body := `{"object":"page","entry":[{"id":"1","messaging":[
		{"sender":{"id":"u1"},"recipient":{"id":"page"},"message":{"mid":"m1","text":"hello"}},
		{"sender":{"id":"u2"},"recipient":{"id":"page"},"postback":{"payload":"MAIN_CATEGORY_recA"}}
	]}]}`
	res, err := http.Post(server.URL+"/api/messenger/webhook", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, eventReceived, readAll(t, res))
	require.Len(t, bot.events, 2)
	assert.Equal(t, conversation.KindText, bot.events[0].Kind)
	assert.Equal(t, "u2", bot.events[1].SenderID)
	assert.Equal(t, "MAIN_CATEGORY_recA", bot.events[1].Payload)
}

func TestWebhookHandler_AlwaysAcknowledges(t *testing.T) {
	bot := &recordingBot{err: errors.New("send failed")}
	hook := &GraphWebhook{Bot: bot, VerifyToken: "t"}
	server := setupWebhookServer(t, NewWebhookHandler(hook, hook, &recordingUpdates{}, 0))

	bodies := map[string]string{
		"/api/messenger/webhook": `{not json`,
		"/api/whatsapp/webhook":  `[]`,
		"/api/telegram/webhook":  `garbage`,
	}
	for path, body := range bodies {
		res, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Equal(t, eventReceived, readAll(t, res), path)
		res.Body.Close()
	}

	res, err := http.Post(server.URL+"/api/messenger/webhook", "application/json",
		strings.NewReader(`{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"text":"hi"}}]}]}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode, "processing errors are not surfaced")
	assert.Len(t, bot.events, 1)
}

func TestWebhookHandler_WhatsAppDelivery(t *testing.T) {
	bot := &recordingBot{}
	server := setupWebhookServer(t, NewWebhookHandler(nil, &GraphWebhook{Bot: bot, VerifyToken: "t"}, nil, 0))

	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{
		"messages":[{"from":"201000","id":"w1","type":"interactive",
		"interactive":{"type":"button_reply","button_reply":{"id":"SUB_CATEGORY_recA_recB","title":"Winter"}}}]}}]}]}`
	res, err := http.Post(server.URL+"/api/whatsapp/webhook", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, bot.events, 1)
	assert.Equal(t, conversation.KindPostback, bot.events[0].Kind)
	assert.Equal(t, "SUB_CATEGORY_recA_recB", bot.events[0].Payload)
}

func TestWebhookHandler_TelegramDelivery(t *testing.T) {
	updates := &recordingUpdates{}
	server := setupWebhookServer(t, NewWebhookHandler(nil, nil, updates, 0))

	body := `{"update_id":7,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"hello"}}`
	res, err := http.Post(server.URL+"/api/telegram/webhook", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, updates.updates, 1)
	assert.Equal(t, 7, updates.updates[0].UpdateID)
	assert.Equal(t, int64(42), updates.updates[0].Message.Chat.ID)
}

func TestWebhookHandler_UnconfiguredChannelsNotRouted(t *testing.T) {
	server := setupWebhookServer(t, NewWebhookHandler(nil, nil, nil, 0))

	res, err := http.Post(server.URL+"/api/messenger/webhook", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
