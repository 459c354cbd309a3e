package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("test-token")
	c.baseURL = srv.URL
	return c
}

func TestSendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		var body sendMessageReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(42), body.ChatID)
		assert.Equal(t, "New intake ready", body.Text)
		w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, c.SendMessage(context.Background(), 42, "New intake ready"))
}

func TestSendDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendDocument", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "Handover", r.FormValue("caption"))

		f, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "handover.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, c.SendDocument(context.Background(), 42, []byte("%PDF-1.4"), "handover.pdf", "Handover"))
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	})

	err := c.SendMessage(context.Background(), 1, "hi")
	assert.ErrorContains(t, err, "chat not found")
	assert.True(t, c.Enabled())
	assert.False(t, NewClient("").Enabled())
}
