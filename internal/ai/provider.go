package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrUnavailable marks a provider that is present but not configured.
	ErrUnavailable = errors.New("ai backend not configured")
	// ErrBackendUnreachable marks a connection-level failure to a model backend.
	ErrBackendUnreachable = errors.New("ai backend unreachable")
	// ErrBackendTimeout marks a call that exceeded its deadline.
	ErrBackendTimeout = errors.New("ai backend timeout")
	// ErrMalformedResponse marks a response missing an expected field.
	ErrMalformedResponse = errors.New("malformed ai backend response")
)

// Prompt is an assembled chat request: a fixed system instruction plus the
// user content carrying the question and retrieved context.
type Prompt struct {
	System string
	User   string
}

// Combined renders the prompt as a single completion-style string for
// backends that take a flat prompt instead of role-tagged messages.
func (p Prompt) Combined() string {
	return fmt.Sprintf("<<SYS>>\n%s\n<</SYS>>\n\n%s", p.System, p.User)
}

type IChatProvider interface {
	Name() string
	Chat(ctx context.Context, model string, prompt Prompt) (string, error)
	// ChatStream emits incremental answer fragments via emit until the backend
	// signals completion. Returning a non-nil error from emit stops the stream.
	ChatStream(ctx context.Context, model string, prompt Prompt, emit func(fragment string) error) error
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

// IChatModel binds a provider to one configured model.
type IChatModel interface {
	Chat(ctx context.Context, prompt Prompt) (string, error)
	ChatStream(ctx context.Context, prompt Prompt, emit func(fragment string) error) error
}

// IEmbedder binds an embedding provider to one configured model.
type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type chatModel struct {
	provider IChatProvider
	model    string
}

func NewChatModel(p IChatProvider, model string) IChatModel {
	return &chatModel{provider: p, model: model}
}

func (m *chatModel) Chat(ctx context.Context, prompt Prompt) (string, error) {
	return m.provider.Chat(ctx, m.model, prompt)
}

func (m *chatModel) ChatStream(ctx context.Context, prompt Prompt, emit func(string) error) error {
	return m.provider.ChatStream(ctx, m.model, prompt, emit)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

// ProviderArgs carries the provider-specific config blob plus the shared HTTP
// client, constructed once at startup with its timeout already applied.
type ProviderArgs struct {
	Data   interface{}
	Client *http.Client
}

type ChatFactory func(args ProviderArgs) (IChatProvider, error)

type EmbedFactory func(args ProviderArgs) (IEmbedProvider, error)

var (
	chatRegistry  = map[string]ChatFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory ChatFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	chatRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewChatProvider(name string, args ProviderArgs) (IChatProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("chat provider name is required")
	}
	factory := chatRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported chat provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args ProviderArgs) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embed provider name is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}

// classifyTransportErr distinguishes timeouts from connection failures so the
// caller can surface them separately.
func classifyTransportErr(err error, endpoint string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrBackendTimeout, endpoint, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrBackendTimeout, endpoint, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrBackendUnreachable, endpoint, err)
}
