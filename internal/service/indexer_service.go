package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/techoasis/helpdesk-rag/internal/ai"
	"github.com/techoasis/helpdesk-rag/internal/model"
	"github.com/techoasis/helpdesk-rag/internal/text"
)

// ErrReindexRunning is returned when a reindex is requested while another run
// is still in flight. Concurrent runs over the same chunk set are not
// supported.
var ErrReindexRunning = errors.New("reindex already running")

type ArticleLister interface {
	ListActive(ctx context.Context) ([]model.Article, error)
}

type ChunkWriter interface {
	ReplaceForArticle(ctx context.Context, articleID int64, chunks []model.Chunk) error
}

type IndexerConfig struct {
	MaxCharsPerChunk int
	StripMarkdown    bool
}

type IndexerService struct {
	articles ArticleLister
	chunks   ChunkWriter
	embedder ai.IEmbedder
	cfg      IndexerConfig
	running  atomic.Bool
}

func NewIndexerService(articles ArticleLister, chunks ChunkWriter, embedder ai.IEmbedder, cfg IndexerConfig) *IndexerService {
	if cfg.MaxCharsPerChunk <= 0 {
		cfg.MaxCharsPerChunk = 1200
	}
	return &IndexerService{
		articles: articles,
		chunks:   chunks,
		embedder: embedder,
		cfg:      cfg,
	}
}

// ReindexAll rebuilds the chunk set for every active article, in ascending
// article-id order, and returns the number of chunks written. The run aborts
// on the first failure: chunks already committed for fully processed articles
// stay in place, the failing article keeps its previous generation untouched
// (embedding happens before the delete-and-insert transaction), and the
// returned count covers only committed chunks.
func (s *IndexerService) ReindexAll(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrReindexRunning
	}
	defer s.running.Store(false)

	logger := logutil.GetLogger(ctx)
	articles, err := s.articles.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list articles: %w", err)
	}
	total := 0
	for _, article := range articles {
		pieces := text.Chunk(s.articleText(article), s.cfg.MaxCharsPerChunk)
		chunks := make([]model.Chunk, 0, len(pieces))
		for i, piece := range pieces {
			vec, err := s.embedder.Embed(ctx, piece, "RETRIEVAL_DOCUMENT")
			if err != nil {
				return total, fmt.Errorf("embed chunk %d of article %d: %w", i, article.ID, err)
			}
			chunks = append(chunks, model.Chunk{
				ArticleID:  article.ID,
				ChunkIndex: i,
				Text:       piece,
				Embedding:  vec,
			})
		}
		if err := s.chunks.ReplaceForArticle(ctx, article.ID, chunks); err != nil {
			return total, fmt.Errorf("store chunks of article %d: %w", article.ID, err)
		}
		total += len(chunks)
		logger.Debug("article indexed", zap.Int64("article_id", article.ID), zap.Int("chunks", len(chunks)))
	}
	logger.Info("reindex completed", zap.Int("articles", len(articles)), zap.Int("chunks", total))
	return total, nil
}

func (s *IndexerService) articleText(article model.Article) string {
	body := article.Body
	if s.cfg.StripMarkdown {
		body = text.PlainText(body)
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		return body
	}
	return title + "\n\n" + body
}
