package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/techoasis/helpdesk-rag/internal/ai"
	"github.com/techoasis/helpdesk-rag/internal/model"
	"github.com/techoasis/helpdesk-rag/internal/pkg/jwt"
	"github.com/techoasis/helpdesk-rag/internal/service"
)

type stubChatModel struct {
	answer    string
	fragments []string
	err       error
	calls     int
}

func (m *stubChatModel) Chat(ctx context.Context, prompt ai.Prompt) (string, error) {
	m.calls++
	return m.answer, m.err
}

func (m *stubChatModel) ChatStream(ctx context.Context, prompt ai.Prompt, emit func(string) error) error {
	m.calls++
	for _, fragment := range m.fragments {
		if err := emit(fragment); err != nil {
			return err
		}
	}
	return m.err
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.vec, e.err
}

func (e *stubEmbedder) ModelName() string { return "stub" }

type stubChunkStore struct {
	chunks []model.Chunk
}

func (s *stubChunkStore) ListAll(ctx context.Context) ([]model.Chunk, error) {
	return s.chunks, nil
}

func (s *stubChunkStore) ReplaceForArticle(ctx context.Context, articleID int64, chunks []model.Chunk) error {
	return nil
}

type stubArticleStore struct {
	articles []model.Article
}

func (s *stubArticleStore) ListActive(ctx context.Context) ([]model.Article, error) {
	return s.articles, nil
}

func newTestRouter(t *testing.T, chat *stubChatModel, embedder *stubEmbedder, secret string) (*gin.Engine, *stubChunkStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	chunks := &stubChunkStore{}
	chatService := service.NewChatService(chat, embedder, chunks, nil, service.ChatConfig{
		TopK:            3,
		MaxContextChars: 1200,
		ChatTimeout:     time.Second,
		StreamTimeout:   time.Second,
	})
	articles := &stubArticleStore{articles: []model.Article{
		{ID: 1, Title: "Wi-Fi", Body: "Restart the router. Wait ten seconds.", Active: true},
	}}
	indexerService := service.NewIndexerService(articles, chunks, embedder, service.IndexerConfig{MaxCharsPerChunk: 1200})

	engine := gin.New()
	api := engine.Group("/api/v1")
	RegisterRoutes(api, RouterDeps{
		Chat:      NewChatHandler(chatService, indexerService),
		Articles:  NewArticleHandler(service.NewArticleService(&fakeArticleRepo{})),
		JWTSecret: []byte(secret),
	})
	return engine, chunks
}

type fakeArticleRepo struct{}

func (r *fakeArticleRepo) ListActive(ctx context.Context) ([]model.Article, error) { return nil, nil }
func (r *fakeArticleRepo) Get(ctx context.Context, id int64) (*model.Article, error) {
	return &model.Article{ID: id, Title: "stub", Active: true}, nil
}
func (r *fakeArticleRepo) Create(ctx context.Context, article *model.Article) (int64, error) {
	article.ID = 1
	return 1, nil
}
func (r *fakeArticleRepo) Update(ctx context.Context, article *model.Article) error { return nil }
func (r *fakeArticleRepo) Delete(ctx context.Context, id int64) error               { return nil }

// closeNotifyRecorder adds the http.CloseNotifier method gin's c.Stream
// requires; httptest.ResponseRecorder alone does not implement it.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func postJSON(engine *gin.Engine, path string, body interface{}, token string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	engine.ServeHTTP(rec, req)
	return rec.ResponseRecorder
}

func TestChat_ReturnsAnswer(t *testing.T) {
	chat := &stubChatModel{answer: "restart the router"}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "")

	rec := postJSON(engine, "/api/v1/chat", gin.H{"message": "wifi down"}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "restart the router", body["answer"])
	require.Equal(t, 1, chat.calls)
}

func TestChat_EmptyMessageRejected(t *testing.T) {
	chat := &stubChatModel{answer: "unused"}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "")

	rec := postJSON(engine, "/api/v1/chat", gin.H{"message": "   "}, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"error":true`)
	require.Equal(t, 0, chat.calls)
}

func TestChat_BackendUnreachableMapsToBadGateway(t *testing.T) {
	chat := &stubChatModel{err: ai.ErrBackendUnreachable}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "")

	rec := postJSON(engine, "/api/v1/chat", gin.H{"message": "wifi down"}, "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), `"error":true`)
}

func TestChat_BackendTimeoutMapsToGatewayTimeout(t *testing.T) {
	chat := &stubChatModel{err: ai.ErrBackendTimeout}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "")

	rec := postJSON(engine, "/api/v1/chat", gin.H{"message": "wifi down"}, "")

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestChatStream_EmitsFragmentsAndTerminates(t *testing.T) {
	chat := &stubChatModel{fragments: []string{"restart ", "the router"}}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "")

	rec := postJSON(engine, "/api/v1/chat/stream", gin.H{"message": "wifi down"}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	require.Contains(t, rec.Body.String(), "restart ")
	require.Contains(t, rec.Body.String(), "the router")
}

func TestChatStream_ErrorBecomesTerminalFragment(t *testing.T) {
	chat := &stubChatModel{err: ai.ErrBackendUnreachable}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "")

	rec := postJSON(engine, "/api/v1/chat/stream", gin.H{"message": "wifi down"}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "⚠️ Error:")
}

func TestReindex_ReportsIndexedCount(t *testing.T) {
	chat := &stubChatModel{answer: "unused"}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "")

	rec := postJSON(engine, "/api/v1/reindex", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool `json:"success"`
		Indexed int  `json:"indexed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, 1, body.Indexed)
}

func TestReindex_EmbedFailureReportsAbort(t *testing.T) {
	chat := &stubChatModel{answer: "unused"}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{err: ai.ErrBackendUnreachable}, "")

	rec := postJSON(engine, "/api/v1/reindex", nil, "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAuth_MissingTokenBlocksChat(t *testing.T) {
	chat := &stubChatModel{answer: "unused"}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "topsecret")

	rec := postJSON(engine, "/api/v1/chat", gin.H{"message": "wifi down"}, "")

	require.Equal(t, 0, chat.calls)
	require.NotContains(t, rec.Body.String(), "answer")
}

func TestAuth_NonAdminBlockedFromReindex(t *testing.T) {
	chat := &stubChatModel{answer: "unused"}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "topsecret")

	token, err := jwt.GenerateToken("42", "user", []byte("topsecret"), time.Hour)
	require.NoError(t, err)
	rec := postJSON(engine, "/api/v1/reindex", nil, token)

	require.NotContains(t, rec.Body.String(), `"success":true`)
}

func TestAuth_AdminTokenAllowsReindex(t *testing.T) {
	chat := &stubChatModel{answer: "unused"}
	engine, _ := newTestRouter(t, chat, &stubEmbedder{vec: []float32{1, 0}}, "topsecret")

	token, err := jwt.GenerateToken("42", "admin", []byte("topsecret"), time.Hour)
	require.NoError(t, err)
	rec := postJSON(engine, "/api/v1/reindex", nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
}
