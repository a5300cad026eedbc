package notifysvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invasionlatina/backend/core"
)

func TestExpandPushMessages(t *testing.T) {
	msgs := expandPushMessages([]*core.PushMessage{
		{To: []string{"ExponentPushToken[a]", "not-a-token", ""}, Title: "t1", Body: "b1"},
		{To: []string{"ExponentPushToken[b]"}, Title: "t2", Body: "b2", Sound: "default"},
		{To: nil, Title: "t3"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "ExponentPushToken[a]", msgs[0].To)
	assert.Equal(t, "t1", msgs[0].Title)
	assert.Equal(t, "ExponentPushToken[b]", msgs[1].To)
	assert.Equal(t, "default", msgs[1].Sound)
}

func TestExpoService_send(t *testing.T) {
	var received []expoMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	svc := &expoService{
		url:     srv.URL,
		timeout: time.Second,
		client:  &rest.Client{HTTPClient: srv.Client()},
	}
	err := svc.send([]expoMessage{{To: "ExponentPushToken[a]", Title: "Salut", Body: "ça va?"}})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "ça va?", received[0].Body)
}

func TestExpoService_sendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := &expoService{
		url:     srv.URL,
		timeout: time.Second,
		client:  &rest.Client{HTTPClient: srv.Client()},
	}
	assert.Error(t, svc.send([]expoMessage{{To: "ExponentPushToken[a]"}}))
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock()
	svc.Push(
		&core.PushMessage{To: []string{"ExponentPushToken[a]"}, Title: "ok"},
		&core.PushMessage{To: []string{"nope"}, Title: "skipped"},
	)
	svc.Send("hello")

	pushes := svc.Pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "ok", pushes[0].Title)
	assert.Equal(t, []string{"hello"}, svc.WhatsAppMessages())

	svc.Reset()
	assert.Empty(t, svc.Pushes())
	assert.Empty(t, svc.WhatsAppMessages())
}
