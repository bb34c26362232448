package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/techoasis/helpdesk-rag/internal/model"
	"github.com/techoasis/helpdesk-rag/internal/pkg/dbutil"
)

type InteractionRepo struct {
	db *sql.DB
}

func NewInteractionRepo(db *sql.DB) *InteractionRepo {
	return &InteractionRepo{db: db}
}

func (r *InteractionRepo) Save(ctx context.Context, item *model.ChatInteraction) error {
	if item.Ctime == 0 {
		item.Ctime = time.Now().UnixMilli()
	}
	data := map[string]interface{}{
		"question": item.Question,
		"answer":   item.Answer,
		"ctime":    item.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chat_interactions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
