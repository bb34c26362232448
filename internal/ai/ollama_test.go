package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestOllama(t *testing.T, handler http.Handler) (*ollamaProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := newOllamaProvider(ProviderArgs{
		Data:   map[string]interface{}{"base_url": srv.URL},
		Client: srv.Client(),
	})
	require.NoError(t, err)
	return p, srv
}

func TestOllamaEmbed_ReturnsVector(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"embedding":[0.1,0.2,0.3]}`)
	}))
	vec, err := p.Embed(context.Background(), "nomic-embed-text", "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	require.Equal(t, "/api/embeddings", gotPath)
	require.Equal(t, "nomic-embed-text", gotBody["model"])
	require.Equal(t, "hello", gotBody["prompt"])
	require.Equal(t, "1h", gotBody["keep_alive"])
}

func TestOllamaEmbed_MissingFieldIsMalformed(t *testing.T) {
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"model":"x"}`)
	}))
	_, err := p.Embed(context.Background(), "m", "text", "")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestOllamaEmbed_Non2xxFails(t *testing.T) {
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	_, err := p.Embed(context.Background(), "m", "text", "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBackendUnreachable)
	require.Contains(t, err.Error(), "model not found")
}

func TestOllamaEmbed_UnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	p, err := newOllamaProvider(ProviderArgs{Data: map[string]interface{}{"base_url": srv.URL}})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", "text", "")
	require.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestOllamaEmbed_TimeoutDistinctFromUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	p, err := newOllamaProvider(ProviderArgs{
		Data:   map[string]interface{}{"base_url": srv.URL},
		Client: &http.Client{Timeout: 50 * time.Millisecond},
	})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", "text", "")
	require.ErrorIs(t, err, ErrBackendTimeout)
	require.NotErrorIs(t, err, ErrBackendUnreachable)
}

func TestOllamaChat_ChatShape(t *testing.T) {
	var gotReq ollamaChatRequest
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, `{"message":{"content":"Open a ticket."},"done":true}`)
	}))
	answer, err := p.Chat(context.Background(), "llama3.2", Prompt{System: "policy", User: "question"})
	require.NoError(t, err)
	require.Equal(t, "Open a ticket.", answer)
	require.False(t, gotReq.Stream)
	require.Equal(t, 220, gotReq.Options.NumPredict)
	require.InDelta(t, 0.3, gotReq.Options.Temperature, 1e-9)
	require.Equal(t, 1024, gotReq.Options.NumCtx)
	require.Len(t, gotReq.Messages, 2)
	require.Equal(t, "system", gotReq.Messages[0].Role)
	require.Equal(t, "policy", gotReq.Messages[0].Content)
	require.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestOllamaChat_CompletionShapeFallback(t *testing.T) {
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":"Restart the router.","done":true}`)
	}))
	answer, err := p.Chat(context.Background(), "m", Prompt{User: "q"})
	require.NoError(t, err)
	require.Equal(t, "Restart the router.", answer)
}

func TestOllamaChat_RawFallback(t *testing.T) {
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	answer, err := p.Chat(context.Background(), "m", Prompt{User: "q"})
	require.NoError(t, err)
	require.Equal(t, "not json at all", answer)
}

func TestOllamaChat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	p, err := newOllamaProvider(ProviderArgs{Data: map[string]interface{}{"base_url": srv.URL}})
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), "m", Prompt{User: "q"})
	require.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestOllamaChatStream_EmitsFragmentsInOrder(t *testing.T) {
	var gotReq ollamaGenerateRequest
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		lines := []string{
			`{"response":"Res","done":false}`,
			`{"done":false}`,
			`{"response":"tart","done":false}`,
			`{"response":".","done":true}`,
		}
		fmt.Fprint(w, strings.Join(lines, "\n"))
	}))
	var got []string
	err := p.ChatStream(context.Background(), "m", Prompt{System: "policy", User: "q"}, func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Res", "tart", "."}, got)
	require.True(t, gotReq.Stream)
	require.Equal(t, 160, gotReq.Options.NumPredict)
	require.Contains(t, gotReq.Prompt, "<<SYS>>")
	require.Contains(t, gotReq.Prompt, "policy")
	require.Contains(t, gotReq.Prompt, "q")
}

func TestOllamaChatStream_SkipsUnparsableLines(t *testing.T) {
	p, _ := newTestOllama(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "garbage\n{\"response\":\"ok\",\"done\":true}")
	}))
	var got []string
	err := p.ChatStream(context.Background(), "m", Prompt{User: "q"}, func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ok"}, got)
}

func TestOllamaChatStream_UnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	p, err := newOllamaProvider(ProviderArgs{Data: map[string]interface{}{"base_url": srv.URL}})
	require.NoError(t, err)
	err = p.ChatStream(context.Background(), "m", Prompt{User: "q"}, func(string) error { return nil })
	require.ErrorIs(t, err, ErrBackendUnreachable)
}
