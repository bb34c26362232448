package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/techoasis/helpdesk-rag/internal/pkg/errcode"
	"github.com/techoasis/helpdesk-rag/internal/pkg/response"
	"github.com/techoasis/helpdesk-rag/internal/service"
)

type ArticleHandler struct {
	articles *service.ArticleService
}

func NewArticleHandler(articles *service.ArticleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

type articleCreateRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type articleUpdateRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Active *bool  `json:"active"`
}

func (h *ArticleHandler) List(c *gin.Context) {
	items, err := h.articles.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ArticleHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	article, err := h.articles.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, article)
}

func (h *ArticleHandler) Create(c *gin.Context) {
	var req articleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	authorID, _ := strconv.ParseInt(getUserID(c), 10, 64)
	article, err := h.articles.Create(c.Request.Context(), req.Title, req.Body, authorID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, article)
}

func (h *ArticleHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req articleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	article, err := h.articles.Update(c.Request.Context(), id, req.Title, req.Body, active)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, article)
}

func (h *ArticleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.articles.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, errcode.ErrInvalid, "invalid id")
		return 0, false
	}
	return id, true
}
