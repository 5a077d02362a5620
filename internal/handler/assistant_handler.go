package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/consultrag/internal/model"
	"github.com/xxxsen/consultrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/consultrag/internal/pkg/errors"
	"github.com/xxxsen/consultrag/internal/pkg/response"
	"github.com/xxxsen/consultrag/internal/service"
)

const (
	maxIndexRecords  = 1000
	maxQuestionChars = 2000
)

type Reindexer interface {
	ReindexUser(ctx context.Context, userID string) (*model.IndexReport, error)
}

type AssistantHandler struct {
	pool      *service.Pool
	reindexer Reindexer
	snapshots *service.SnapshotService
}

// NewAssistantHandler wires the assistant endpoints. reindexer and snapshots
// are optional; their endpoints answer "not found" when absent.
func NewAssistantHandler(pool *service.Pool, reindexer Reindexer, snapshots *service.SnapshotService) *AssistantHandler {
	return &AssistantHandler{pool: pool, reindexer: reindexer, snapshots: snapshots}
}

type indexRequest struct {
	Records []model.ConsultationRecord `json:"records"`
}

type askRequest struct {
	Question        string `json:"question"`
	UserDisplayName string `json:"user_display_name"`
}

type snapshotRequest struct {
	Name string `json:"name"`
}

func (h *AssistantHandler) Index(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len(req.Records) > maxIndexRecords {
		response.Error(c, errcode.ErrInvalid, fmt.Sprintf("at most %d records per request", maxIndexRecords))
		return
	}
	report := h.pool.Get(getUserID(c)).IndexBatch(c.Request.Context(), req.Records)
	response.Success(c, report)
}

// Ask always succeeds at the transport level; failures are already folded
// into the answer text and the escalation flag.
func (h *AssistantHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len([]rune(req.Question)) > maxQuestionChars {
		response.Error(c, errcode.ErrInvalid, "question too long")
		return
	}
	result := h.pool.Get(getUserID(c)).AnswerQuestion(c.Request.Context(), req.Question, strings.TrimSpace(req.UserDisplayName))
	response.Success(c, result)
}

func (h *AssistantHandler) Stats(c *gin.Context) {
	stats, err := h.pool.Get(getUserID(c)).Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *AssistantHandler) ClearCache(c *gin.Context) {
	if err := h.pool.Get(getUserID(c)).Clear(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *AssistantHandler) Reindex(c *gin.Context) {
	if h.reindexer == nil {
		response.Error(c, errcode.ErrNotFound, "consultation source not configured")
		return
	}
	report, err := h.reindexer.ReindexUser(c.Request.Context(), getUserID(c))
	if err != nil {
		response.Error(c, errcode.ErrSourceUnavailable, "")
		return
	}
	response.Success(c, report)
}

func (h *AssistantHandler) ExportSnapshot(c *gin.Context) {
	h.snapshot(c, h.snapshots.Export)
}

func (h *AssistantHandler) ImportSnapshot(c *gin.Context) {
	h.snapshot(c, h.snapshots.Import)
}

func (h *AssistantHandler) snapshot(c *gin.Context, fn func(context.Context, *service.RAGService, string) (int, error)) {
	if h.snapshots == nil {
		response.Error(c, errcode.ErrNotFound, "snapshot store not configured")
		return
	}
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		handleError(c, appErr.ErrInvalid)
		return
	}
	cnt, err := fn(c.Request.Context(), h.pool.Get(getUserID(c)), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"passages": cnt})
}
