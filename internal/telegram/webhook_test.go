package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postUpdate(t *testing.T, h http.Handler, secret string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, WebhookPath, bytes.NewReader(body))
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookDispatchesUpdates(t *testing.T) {
	api := newFakeAPI()
	h := &stubHandler{}
	b, ctx := startBot(t, api, h, Options{})
	router := b.Router(ctx, "s3cret")

	body, err := json.Marshal(textUpdate(1, 10, "hello"))
	require.NoError(t, err)

	rec := postUpdate(t, router, "s3cret", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Eventually(t, func() bool { return len(h.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, "hello", h.snapshot()[0].arg)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	b, ctx := startBot(t, newFakeAPI(), &stubHandler{}, Options{})
	router := b.Router(ctx, "s3cret")

	assert.Equal(t, http.StatusForbidden, postUpdate(t, router, "", []byte("{}")).Code)
	assert.Equal(t, http.StatusForbidden, postUpdate(t, router, "wrong", []byte("{}")).Code)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	b, ctx := startBot(t, newFakeAPI(), &stubHandler{}, Options{})
	rec := postUpdate(t, b.Router(ctx, ""), "", []byte("not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHeartbeat(t *testing.T) {
	b, ctx := startBot(t, newFakeAPI(), &stubHandler{}, Options{})
	rec := httptest.NewRecorder()
	b.Router(ctx, "s3cret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeWebhookRegistersAndStops(t *testing.T) {
	api := newFakeAPI()
	b := New(api, &stubHandler{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.ServeWebhook(ctx, WebhookOptions{URL: "https://bot.example.com", Secret: "s3cret", ListenAddr: "127.0.0.1:0"})
	}()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		_, ok := api.made["setWebhook"]
		return ok
	}, waitFor, 10*time.Millisecond)
	api.mu.Lock()
	params := api.made["setWebhook"]
	api.mu.Unlock()
	assert.Equal(t, "https://bot.example.com"+WebhookPath, params["url"])
	assert.Equal(t, "s3cret", params["secret_token"])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("ServeWebhook did not return")
	}
}
