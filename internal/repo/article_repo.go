package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/techoasis/helpdesk-rag/internal/model"
	"github.com/techoasis/helpdesk-rag/internal/pkg/dbutil"
	appErr "github.com/techoasis/helpdesk-rag/internal/pkg/errors"
)

const articleFields = "id, title, body, author_id, view_count, active, ctime, mtime"

type ArticleRepo struct {
	db *sql.DB
}

func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// ListActive returns active articles in ascending id order so that reindex
// runs process articles deterministically.
func (r *ArticleRepo) ListActive(ctx context.Context) ([]model.Article, error) {
	where := map[string]interface{}{
		"active":   true,
		"_orderby": "id ASC",
	}
	sqlStr, args, err := builder.BuildSelect("kb_articles",
		where, []string{articleFields})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var articles []model.Article
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.ViewCount, &a.Active, &a.Ctime, &a.Mtime); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (r *ArticleRepo) Get(ctx context.Context, id int64) (*model.Article, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("kb_articles", where, []string{articleFields})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var a model.Article
	if err := row.Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.ViewCount, &a.Active, &a.Ctime, &a.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *ArticleRepo) Create(ctx context.Context, a *model.Article) (int64, error) {
	const query = `
		INSERT INTO kb_articles (title, body, author_id, view_count, active, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now().UnixMilli()
	if a.Ctime == 0 {
		a.Ctime = now
	}
	a.Mtime = now
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		a.Title, a.Body, a.AuthorID, a.ViewCount, a.Active, a.Ctime, a.Mtime,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

func (r *ArticleRepo) Update(ctx context.Context, a *model.Article) error {
	where := map[string]interface{}{"id": a.ID}
	update := map[string]interface{}{
		"title":  a.Title,
		"body":   a.Body,
		"active": a.Active,
		"mtime":  time.Now().UnixMilli(),
	}
	sqlStr, args, err := builder.BuildUpdate("kb_articles", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ArticleRepo) Delete(ctx context.Context, id int64) error {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildDelete("kb_articles", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
