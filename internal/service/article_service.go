package service

import (
	"context"
	"strings"

	"github.com/techoasis/helpdesk-rag/internal/model"
	appErr "github.com/techoasis/helpdesk-rag/internal/pkg/errors"
)

type ArticleStore interface {
	ListActive(ctx context.Context) ([]model.Article, error)
	Get(ctx context.Context, id int64) (*model.Article, error)
	Create(ctx context.Context, article *model.Article) (int64, error)
	Update(ctx context.Context, article *model.Article) error
	Delete(ctx context.Context, id int64) error
}

type ArticleService struct {
	articles ArticleStore
}

func NewArticleService(articles ArticleStore) *ArticleService {
	return &ArticleService{articles: articles}
}

func (s *ArticleService) List(ctx context.Context) ([]model.Article, error) {
	return s.articles.ListActive(ctx)
}

func (s *ArticleService) Get(ctx context.Context, id int64) (*model.Article, error) {
	return s.articles.Get(ctx, id)
}

func (s *ArticleService) Create(ctx context.Context, title, body string, authorID int64) (*model.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErr.ErrInvalid
	}
	article := &model.Article{
		Title:    title,
		Body:     body,
		AuthorID: authorID,
		Active:   true,
	}
	if _, err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *ArticleService) Update(ctx context.Context, id int64, title, body string, active bool) (*model.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErr.ErrInvalid
	}
	article := &model.Article{
		ID:     id,
		Title:  title,
		Body:   body,
		Active: active,
	}
	if err := s.articles.Update(ctx, article); err != nil {
		return nil, err
	}
	return s.articles.Get(ctx, id)
}

func (s *ArticleService) Delete(ctx context.Context, id int64) error {
	return s.articles.Delete(ctx, id)
}
