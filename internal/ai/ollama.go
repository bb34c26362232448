package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaBaseURL = "http://localhost:11434"

type ollamaConfig struct {
	BaseURL          string  `json:"base_url"`
	KeepAlive        string  `json:"keep_alive"`
	NumPredict       int     `json:"num_predict"`
	StreamNumPredict int     `json:"stream_num_predict"`
	Temperature      float64 `json:"temperature"`
	NumCtx           int     `json:"num_ctx"`
}

type ollamaProvider struct {
	baseURL          string
	keepAlive        string
	numPredict       int
	streamNumPredict int
	temperature      float64
	numCtx           int
	client           *http.Client
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
}

type ollamaChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model     string          `json:"model"`
	Stream    bool            `json:"stream"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Options   ollamaOptions   `json:"options"`
	Messages  []ollamaChatMsg `json:"messages"`
}

type ollamaGenerateRequest struct {
	Model     string        `json:"model"`
	Stream    bool          `json:"stream"`
	KeepAlive string        `json:"keep_alive,omitempty"`
	Options   ollamaOptions `json:"options"`
	Prompt    string        `json:"prompt"`
}

type ollamaEmbedRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	KeepAlive string `json:"keep_alive,omitempty"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ollamaAnswer covers both response shapes the backend can return: the chat
// endpoint nests the text under message.content, the generate endpoint puts it
// in a top-level response field.
type ollamaAnswer struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model:     model,
		Prompt:    text,
		KeepAlive: p.keepAlive,
	}
	body, err := p.post(ctx, "/api/embeddings", reqBody)
	if err != nil {
		return nil, err
	}
	var out ollamaEmbedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: embeddings: %v", ErrMalformedResponse, err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: embeddings response has no embedding field", ErrMalformedResponse)
	}
	return out.Embedding, nil
}

func (p *ollamaProvider) Chat(ctx context.Context, model string, prompt Prompt) (string, error) {
	reqBody := ollamaChatRequest{
		Model:     model,
		Stream:    false,
		KeepAlive: p.keepAlive,
		Options: ollamaOptions{
			NumPredict:  p.numPredict,
			Temperature: p.temperature,
			NumCtx:      p.numCtx,
		},
		Messages: []ollamaChatMsg{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
	}
	body, err := p.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return "", err
	}
	return extractAnswerText(body), nil
}

// extractAnswerText tries message.content, then response, then falls back to
// the raw payload so the caller always gets something to show.
func extractAnswerText(raw []byte) string {
	var out ollamaAnswer
	if err := json.Unmarshal(raw, &out); err == nil {
		if c := strings.TrimSpace(out.Message.Content); c != "" {
			return c
		}
		if r := strings.TrimSpace(out.Response); r != "" {
			return r
		}
	}
	return strings.TrimSpace(string(raw))
}

func (p *ollamaProvider) ChatStream(ctx context.Context, model string, prompt Prompt, emit func(string) error) error {
	reqBody := ollamaGenerateRequest{
		Model:     model,
		Stream:    true,
		KeepAlive: p.keepAlive,
		Options: ollamaOptions{
			NumPredict:  p.streamNumPredict,
			Temperature: p.temperature,
			NumCtx:      p.numCtx,
		},
		Prompt: prompt.Combined(),
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	endpoint := p.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return classifyTransportErr(err, endpoint)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama generate failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// The body is newline-delimited JSON objects, each carrying an incremental
	// response field and a done flag. Fragments without text are skipped.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var frag ollamaAnswer
		if err := json.Unmarshal(line, &frag); err != nil {
			continue
		}
		if frag.Response != "" {
			if err := emit(frag.Response); err != nil {
				return err
			}
		}
		if frag.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return classifyTransportErr(err, endpoint)
	}
	return nil
}

func (p *ollamaProvider) post(ctx context.Context, path string, reqBody interface{}) ([]byte, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	endpoint := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err, endpoint)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportErr(err, endpoint)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("ollama request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func newOllamaProvider(args ProviderArgs) (*ollamaProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	keepAlive := strings.TrimSpace(cfg.KeepAlive)
	if keepAlive == "" {
		keepAlive = "1h"
	}
	numPredict := cfg.NumPredict
	if numPredict == 0 {
		numPredict = 220
	}
	streamNumPredict := cfg.StreamNumPredict
	if streamNumPredict == 0 {
		streamNumPredict = 160
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}
	numCtx := cfg.NumCtx
	if numCtx == 0 {
		numCtx = 1024
	}
	client := args.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &ollamaProvider{
		baseURL:          baseURL,
		keepAlive:        keepAlive,
		numPredict:       numPredict,
		streamNumPredict: streamNumPredict,
		temperature:      temperature,
		numCtx:           numCtx,
		client:           client,
	}, nil
}

func createOllamaFactory(args ProviderArgs) (IChatProvider, error) {
	return newOllamaProvider(args)
}

func createOllamaEmbedFactory(args ProviderArgs) (IEmbedProvider, error) {
	return newOllamaProvider(args)
}

func init() {
	Register("ollama", createOllamaFactory)
	RegisterEmbed("ollama", createOllamaEmbedFactory)
}
