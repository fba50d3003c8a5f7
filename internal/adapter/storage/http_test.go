package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(url, "secret", time.Second, time.UTC)
	require.NoError(t, err)
	return c
}

func TestClientSave(t *testing.T) {
	var got snapshot
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/store", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/store/")
	at := time.Date(2025, 6, 1, 7, 5, 9, 0, time.UTC)
	err := c.Save(context.Background(), []domain.Turn{
		domain.NewTurn(domain.RoleUser, "xin chào", at),
		domain.NewTurn(domain.RoleAssistant, "chào bạn", at),
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "2025-06-01 07:05:09", got.Messages[0].Timestamp)
	assert.Equal(t, "assistant", got.Messages[1].Role)
}

func TestClientSaveFallsBackToHistoryPath(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/history" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.Save(context.Background(), []domain.Turn{domain.NewTurn(domain.RoleUser, "hi", time.Now())})

	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/history"}, paths)
}

func TestClientSaveBothAttemptsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.Error(t, c.Save(context.Background(), nil))
}

func TestClientLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"messages":[
			{"role":"system","content":"ctx","timestamp":"2025-06-01 07:00:00"},
			{"role":"user","content":"q","timestamp":"2025-06-01T07:00:01Z"},
			{"role":"assistant","content":"a"}
		]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	turns, err := c.Load(context.Background())

	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, domain.RoleSystem, turns[0].Role)
	assert.True(t, turns[0].Timestamp.Equal(time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)))
	assert.True(t, turns[1].Timestamp.Equal(time.Date(2025, 6, 1, 7, 0, 1, 0, time.UTC)))
	assert.True(t, turns[2].Timestamp.IsZero())
}

func TestClientLoadRejectsMalformedSnapshot(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing messages", body: `{"history":[]}`},
		{name: "bad role", body: `{"messages":[{"role":"tool","content":"x"}]}`},
		{name: "missing content", body: `{"messages":[{"role":"user"}]}`},
		{name: "not json", body: `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			_, err := c.Load(context.Background())
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestClientDelete(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	require.NoError(t, c.Delete(context.Background()))
	assert.Equal(t, http.MethodDelete, method)
}
