package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rephrasego/internal/models"
	"rephrasego/internal/service/ai"
	"rephrasego/internal/service/rewrite"
	"rephrasego/internal/service/session"
	"rephrasego/internal/worker"
)

// SessionStore is the persistence the handlers need.
type SessionStore interface {
	Create(ctx context.Context, sess models.Session) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, id string, upd models.SessionUpdate) error
	DeleteSession(ctx context.Context, id string) error
	RecordFile(ctx context.Context, f models.UploadedFile) (*models.UploadedFile, error)
	ListFiles(ctx context.Context, sessionID string) ([]*models.UploadedFile, error)
	Ping(ctx context.Context) error
	Now() time.Time
}

type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) (*rewrite.Result, error)
}

type Extractor interface {
	Extract(ctx context.Context, path, mimeType string) (string, error)
}

// Handler wires HTTP routes to the rewrite pipeline and the session store.
type Handler struct {
	store     SessionStore
	rewriter  Rewriter
	extractor Extractor
	pool      *worker.Pool
	fileBase  string
	maxUpload int64
}

// NewHandler constructs a Handler instance.
func NewHandler(store SessionStore, rewriter Rewriter, extractor Extractor, pool *worker.Pool, fileBase string, maxUpload int64) *Handler {
	return &Handler{
		store:     store,
		rewriter:  rewriter,
		extractor: extractor,
		pool:      pool,
		fileBase:  fileBase,
		maxUpload: maxUpload,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.POST("/paraphrase", h.paraphrase)
	api.POST("/upload", h.upload)
	api.GET("/session/:id", h.getSession)
	api.DELETE("/session/:id", h.clearSession)
	api.POST("/session/:id/cleanup", h.clearSession)
}

func (h *Handler) health(c *gin.Context) {
	rewrites := gin.H{"running": h.pool.Running(), "limit": h.pool.Limit()}
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable", "rewrites": rewrites})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rewrites": rewrites})
}

type paraphraseRequest struct {
	Text           string `json:"text"`
	Mode           string `json:"mode"`
	Language       string `json:"language"`
	CitationFormat string `json:"citationFormat"`
	StyleMatching  bool   `json:"styleMatching"`
}

type paraphraseResponse struct {
	SessionID       string             `json:"sessionId"`
	OriginalText    string             `json:"originalText"`
	ParaphrasedText string             `json:"paraphrasedText"`
	Highlights      []models.Highlight `json:"highlights"`
	Mode            models.Mode        `json:"mode"`
	Language        string             `json:"language"`
	CitationFormat  string             `json:"citationFormat"`
}

func (h *Handler) paraphrase(c *gin.Context) {
	var body paraphraseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req, err := rewrite.Validate(rewrite.Request{
		Text:           body.Text,
		Mode:           models.Mode(body.Mode),
		Language:       body.Language,
		CitationFormat: models.CitationFormat(body.CitationFormat),
		StyleMatching:  body.StyleMatching,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var resp paraphraseResponse
	err = h.pool.Run(c.Request.Context(), func(ctx context.Context) error {
		sess, err := h.store.Create(ctx, models.Session{
			OriginalText:   req.Text,
			Mode:           req.Mode,
			Language:       req.Language,
			CitationFormat: req.CitationFormat,
			StyleMatching:  req.StyleMatching,
		})
		if err != nil {
			return err
		}
		result, err := h.rewriter.Rewrite(ctx, req)
		if err != nil {
			h.discardPending(sess.ID)
			return err
		}
		if err := h.store.Update(ctx, sess.ID, models.SessionUpdate{
			RewrittenText: &result.RewrittenText,
			Highlights:    result.Highlights,
		}); err != nil {
			h.discardPending(sess.ID)
			return err
		}
		resp = paraphraseResponse{
			SessionID:       sess.ID,
			OriginalText:    req.Text,
			ParaphrasedText: result.RewrittenText,
			Highlights:      result.Highlights,
			Mode:            req.Mode,
			Language:        req.Language,
			CitationFormat:  string(req.CitationFormat),
		}
		return nil
	})
	if err != nil {
		status, msg := rewriteErrorResponse(err)
		if status >= http.StatusInternalServerError {
			c.Error(err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// discardPending drops a session that will never be completed.
func (h *Handler) discardPending(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.DeleteSession(ctx, id); err != nil {
		log.Printf("discard pending session %s failed: %v", id, err)
	}
}

func rewriteErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, rewrite.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, worker.ErrBusy):
		return http.StatusTooManyRequests, worker.ErrBusy.Error()
	case errors.Is(err, ai.ErrOracleAuth):
		return http.StatusInternalServerError, "the AI service rejected our credentials, please contact the administrator"
	case errors.Is(err, ai.ErrOracleQuota):
		return http.StatusInternalServerError, "the AI service quota is exhausted, please try again later"
	case errors.Is(err, ai.ErrOracleRateLimited):
		return http.StatusInternalServerError, "the AI service is rate limiting requests, please retry in a moment"
	case errors.Is(err, ai.ErrOracleFailure):
		return http.StatusInternalServerError, "the AI service failed to rewrite the text, please try again"
	default:
		return http.StatusInternalServerError, "failed to rewrite the text"
	}
}

type fileSummary struct {
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (h *Handler) getSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load session failed"})
		return
	}
	if sess.Expired(h.store.Now()) {
		c.JSON(http.StatusGone, gin.H{"error": "session expired"})
		return
	}
	files, err := h.store.ListFiles(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load session files failed"})
		return
	}
	summaries := make([]fileSummary, 0, len(files))
	for _, f := range files {
		summaries = append(summaries, fileSummary{FileName: f.FileName, FileType: f.FileType, FileSize: f.FileSize, UploadedAt: f.UploadedAt})
	}
	status := "complete"
	if sess.Pending() {
		status = "pending"
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":       sess.ID,
		"status":          status,
		"originalText":    sess.OriginalText,
		"paraphrasedText": sess.RewrittenText,
		"highlights":      sess.Highlights,
		"mode":            sess.Mode,
		"language":        sess.Language,
		"citationFormat":  sess.CitationFormat,
		"styleMatching":   sess.StyleMatching,
		"createdAt":       sess.CreatedAt,
		"expiresAt":       sess.ExpiresAt,
		"files":           summaries,
	})
}

func (h *Handler) clearSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteSession(c.Request.Context(), id); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session cleared"})
}
