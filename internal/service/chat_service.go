package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/techoasis/helpdesk-rag/internal/ai"
	"github.com/techoasis/helpdesk-rag/internal/model"
	appErr "github.com/techoasis/helpdesk-rag/internal/pkg/errors"
)

const errorFragmentPrefix = "⚠️ Error: "

type ChunkStore interface {
	ListAll(ctx context.Context) ([]model.Chunk, error)
}

type InteractionStore interface {
	Save(ctx context.Context, item *model.ChatInteraction) error
}

type ChatConfig struct {
	TopK            int
	MaxContextChars int
	ChatTimeout     time.Duration
	StreamTimeout   time.Duration
}

type ChatService struct {
	chat         ai.IChatModel
	embedder     ai.IEmbedder
	chunks       ChunkStore
	interactions InteractionStore
	cfg          ChatConfig
	cache        *expirable.LRU[string, string]
}

func NewChatService(chat ai.IChatModel, embedder ai.IEmbedder, chunks ChunkStore, interactions InteractionStore, cfg ChatConfig) *ChatService {
	if cfg.TopK < 1 {
		cfg.TopK = 1
	}
	cache := expirable.NewLRU[string, string](1024, nil, 10*time.Minute)
	return &ChatService{
		chat:         chat,
		embedder:     embedder,
		chunks:       chunks,
		interactions: interactions,
		cfg:          cfg,
		cache:        cache,
	}
}

// Answer runs one blocking chat turn: retrieve context best-effort, build the
// prompt, call the chat backend. Retrieval failure degrades to an empty
// context; a backend failure is surfaced to the caller.
func (s *ChatService) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", appErr.ErrInvalid
	}
	cacheKey := answerCacheKey(question)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	kb := s.buildKbContext(ctx, question)
	prompt := buildPrompt(question, kb)

	callCtx := ctx
	if s.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.ChatTimeout)
		defer cancel()
	}
	answer, err := s.chat.Chat(callCtx, prompt)
	if err != nil {
		return "", err
	}
	s.cache.Add(cacheKey, answer)
	s.recordInteraction(ctx, question, answer)
	return answer, nil
}

// AnswerStream runs one streaming chat turn. The returned channel carries
// incremental answer fragments and always terminates: a failure mid-stream
// becomes one final human-readable error fragment instead of an error value,
// so a consumer rendering a live transcript never sees a dangling stream.
func (s *ChatService) AnswerStream(ctx context.Context, question string) (<-chan string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	out := make(chan string)
	go func() {
		defer close(out)
		streamCtx := ctx
		cancel := context.CancelFunc(func() {})
		if s.cfg.StreamTimeout > 0 {
			streamCtx, cancel = context.WithTimeout(ctx, s.cfg.StreamTimeout)
		}
		defer cancel()

		kb := s.buildKbContext(streamCtx, question)
		prompt := buildPrompt(question, kb)
		s.recordInteraction(streamCtx, question, "")

		err := s.chat.ChatStream(streamCtx, prompt, func(fragment string) error {
			select {
			case out <- fragment:
				return nil
			case <-streamCtx.Done():
				return streamCtx.Err()
			}
		})
		if err != nil {
			logutil.GetLogger(ctx).Warn("chat stream failed", zap.Error(err))
			select {
			case out <- errorFragmentPrefix + err.Error():
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// PurgeCache drops cached answers; called after the knowledge base changes.
func (s *ChatService) PurgeCache() {
	s.cache.Purge()
}

// buildKbContext embeds the question, ranks stored chunks, and returns the
// budget-truncated context block. Any failure degrades to an empty context:
// retrieval is an enhancement, not a requirement, for a chat turn.
func (s *ChatService) buildKbContext(ctx context.Context, question string) string {
	logger := logutil.GetLogger(ctx)
	questionVec, err := s.embedder.Embed(ctx, question, "RETRIEVAL_QUERY")
	if err != nil {
		logger.Warn("kb context unavailable: question embedding failed", zap.Error(err))
		return ""
	}
	top, err := s.findRelevantChunks(ctx, questionVec, s.cfg.TopK)
	if err != nil {
		logger.Warn("kb context unavailable: retrieval failed", zap.Error(err))
		return ""
	}
	texts := make([]string, 0, len(top))
	for _, chunk := range top {
		texts = append(texts, chunk.Text)
	}
	return buildContextBlock(texts, s.cfg.MaxContextChars)
}

// findRelevantChunks is a full scan over the stored vectors. Chunks whose
// dimensionality differs from the question vector are silently excluded.
// Equal scores keep their storage order.
func (s *ChatService) findRelevantChunks(ctx context.Context, questionVec []float32, topK int) ([]model.Chunk, error) {
	if topK < 1 {
		topK = 1
	}
	all, err := s.chunks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	type scored struct {
		chunk model.Chunk
		score float64
	}
	matches := make([]scored, 0, len(all))
	for _, chunk := range all {
		if len(chunk.Embedding) == 0 || len(chunk.Embedding) != len(questionVec) {
			continue
		}
		matches = append(matches, scored{chunk: chunk, score: cosineSimilarity(questionVec, chunk.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if topK > len(matches) {
		topK = len(matches)
	}
	result := make([]model.Chunk, 0, topK)
	for i := 0; i < topK; i++ {
		result = append(result, matches[i].chunk)
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-9)
}

func (s *ChatService) recordInteraction(ctx context.Context, question, answer string) {
	if s.interactions == nil {
		return
	}
	err := s.interactions.Save(ctx, &model.ChatInteraction{
		Question: question,
		Answer:   answer,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("record chat interaction failed", zap.Error(err))
	}
}

func answerCacheKey(question string) string {
	hash := sha256.Sum256([]byte(question))
	return hex.EncodeToString(hash[:])
}
