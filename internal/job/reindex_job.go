package job

import (
	"context"
	"errors"

	"github.com/techoasis/helpdesk-rag/internal/service"
)

type ReindexJob struct {
	indexer *service.IndexerService
	chat    *service.ChatService
}

func NewReindexJob(indexer *service.IndexerService, chat *service.ChatService) *ReindexJob {
	return &ReindexJob{indexer: indexer, chat: chat}
}

func (j *ReindexJob) Name() string {
	return "kb_reindex"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	if j.indexer == nil {
		return nil
	}
	_, err := j.indexer.ReindexAll(ctx)
	if errors.Is(err, service.ErrReindexRunning) {
		return nil
	}
	if j.chat != nil {
		j.chat.PurgeCache()
	}
	return err
}
