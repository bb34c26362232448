package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/techoasis/helpdesk-rag/internal/ai"
	appErr "github.com/techoasis/helpdesk-rag/internal/pkg/errors"
	"github.com/techoasis/helpdesk-rag/internal/service"
)

type ChatHandler struct {
	chat    *service.ChatService
	indexer *service.IndexerService
}

func NewChatHandler(chat *service.ChatService, indexer *service.IndexerService) *ChatHandler {
	return &ChatHandler{chat: chat, indexer: indexer}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat answers one blocking chat turn. The endpoint always replies with a
// JSON body: `{"answer": ...}` on success, `{"error": true, "message": ...}`
// otherwise, so the frontend never has to parse a half-rendered page.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "invalid request body"})
		return
	}
	answer, err := h.chat.Answer(c.Request.Context(), req.Message)
	if err != nil {
		status, msg := chatErrorStatus(err)
		c.JSON(status, gin.H{"error": true, "message": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// ChatStream answers one streaming chat turn as server-sent events. The
// service guarantees the fragment channel terminates, so the event stream
// always ends even when the chat backend dies mid-answer.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "invalid request body"})
		return
	}
	fragments, err := h.chat.AnswerStream(c.Request.Context(), req.Message)
	if err != nil {
		status, msg := chatErrorStatus(err)
		c.JSON(status, gin.H{"error": true, "message": msg})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		fragment, ok := <-fragments
		if !ok {
			return false
		}
		c.SSEvent("message", fragment)
		return true
	})
}

// Reindex rebuilds the knowledge-base chunks and drops cached answers built
// on the previous generation.
func (h *ChatHandler) Reindex(c *gin.Context) {
	count, err := h.indexer.ReindexAll(c.Request.Context())
	if errors.Is(err, service.ErrReindexRunning) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "reindex already running"})
		return
	}
	h.chat.PurgeCache()
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Error("reindex failed", zap.Int("indexed", count), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "indexed": count, "message": "reindex aborted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "indexed": count})
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, ai.ErrBackendTimeout):
		return http.StatusGatewayTimeout, "chat backend timed out"
	case errors.Is(err, ai.ErrBackendUnreachable):
		return http.StatusBadGateway, "chat backend unreachable"
	default:
		return http.StatusInternalServerError, "chat backend error"
	}
}
