package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/techoasis/helpdesk-rag/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceForArticle swaps the article's chunk set in one transaction.
// A reader never observes a mix of the old and new generation.
func (r *ChunkRepo) ReplaceForArticle(ctx context.Context, articleID int64, chunks []model.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE article_id = $1`, articleID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO kb_chunks (article_id, chunk_index, chunk_text, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := time.Now().UnixMilli()
	for i, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			articleID, i, chunk.Text, pgvector.NewVector(chunk.Embedding), now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ChunkRepo) DeleteByArticle(ctx context.Context, articleID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kb_chunks WHERE article_id = $1`, articleID)
	return err
}

// ListAll returns every stored chunk in (article_id, chunk_index) order, which
// doubles as the stable tie-break order during retrieval.
func (r *ChunkRepo) ListAll(ctx context.Context) ([]model.Chunk, error) {
	const query = `
		SELECT article_id, chunk_index, chunk_text, embedding, ctime
		FROM kb_chunks
		ORDER BY article_id ASC, chunk_index ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ArticleID, &c.ChunkIndex, &c.Text, &embedding, &c.Ctime); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_chunks`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
