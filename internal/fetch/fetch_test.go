package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(retries int) *Client {
	return NewClient(Options{
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
		MaxRetries:     retries,
		RetryBaseDelay: time.Millisecond,
	}, logrus.New())
}

func TestGet_Success(t *testing.T) {
	var gotUA, gotPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPage = r.URL.Query().Get("page")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	body, err := testClient(3).Get(context.Background(), server.URL, map[string]string{"page": "7"})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "7", gotPage)
}

func TestGet_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	body, err := testClient(3).Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, 3, attempts)
}

func TestGet_ExhaustsRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(3).Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 3, attempts)
}

func TestGet_ContextCancelsBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Options{
		RequestTimeout: 5 * time.Second,
		MaxRetries:     5,
		RetryBaseDelay: time.Hour,
	}, logrus.New())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Get(ctx, server.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
