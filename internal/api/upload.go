package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rephrasego/internal/extract"
	"rephrasego/internal/models"
	"rephrasego/internal/service/session"
)

// multipartOverhead leaves room for boundaries and headers on top of the file cap.
const multipartOverhead = 1 << 20

func (h *Handler) upload(c *gin.Context) {
	limitMB := h.maxUpload >> 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file exceeds the %dMB limit", limitMB)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > h.maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file exceeds the %dMB limit", limitMB)})
		return
	}
	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}
	mimeType, err := extract.ResolveType(file.Header.Get("Content-Type"), file.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type, allowed: txt, pdf, docx"})
		return
	}
	head, err := readHead(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	if !extract.MatchesContent(mimeType, head) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file content does not match its type"})
		return
	}

	sessionID, status, msg := h.uploadSessionID(c)
	if status != http.StatusOK {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	destDir, destPath, finalName := h.getUniqueFilePath(sessionID, filepath.Base(file.Filename))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return
	}
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	text, err := h.extractor.Extract(c.Request.Context(), destPath, mimeType)
	if err != nil {
		discardUpload(destPath)
		switch {
		case errors.Is(err, extract.ErrExtractionUnsupported):
			c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": extract.ErrExtractionUnsupported.Error()})
		case errors.Is(err, extract.ErrEmptyDocument):
			c.JSON(http.StatusBadRequest, gin.H{"error": extract.ErrEmptyDocument.Error()})
		default:
			c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to extract text from file"})
		}
		return
	}

	record, err := h.store.RecordFile(c.Request.Context(), models.UploadedFile{
		SessionID:     sessionID,
		FileName:      finalName,
		FileType:      mimeType,
		FileSize:      file.Size,
		StoredPath:    destPath,
		ExtractedText: text,
	})
	if err != nil {
		discardUpload(destPath)
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record file failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":     record.SessionID,
		"fileName":      record.FileName,
		"extractedText": record.ExtractedText,
		"fileSize":      record.FileSize,
	})
}

// uploadSessionID returns the session the upload belongs to. Without a
// sessionId form field a new one is allocated; with one, it must name a live
// session or an earlier upload.
func (h *Handler) uploadSessionID(c *gin.Context) (string, int, string) {
	id := strings.TrimSpace(c.PostForm("sessionId"))
	if id == "" {
		return session.NewID(), http.StatusOK, ""
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", http.StatusBadRequest, "invalid sessionId"
	}
	id = parsed.String()
	ctx := c.Request.Context()
	sess, err := h.store.Get(ctx, id)
	switch {
	case err == nil:
		if sess.Expired(h.store.Now()) {
			return "", http.StatusGone, "session expired"
		}
		return id, http.StatusOK, ""
	case !errors.Is(err, session.ErrNotFound):
		c.Error(err)
		return "", http.StatusInternalServerError, "load session failed"
	}
	files, err := h.store.ListFiles(ctx, id)
	if err != nil {
		c.Error(err)
		return "", http.StatusInternalServerError, "load session files failed"
	}
	now := h.store.Now()
	for _, f := range files {
		if now.Before(f.ExpiresAt) {
			return id, http.StatusOK, ""
		}
	}
	return "", http.StatusNotFound, "session not found"
}

func readHead(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func discardUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("upload cleanup: remove %s failed: %v", path, err)
	}
	_ = os.Remove(filepath.Dir(path))
}

func (h *Handler) getFilePath(sessionID, filename string) (string, string) {
	destDir := filepath.Join(h.fileBase, sessionID)
	return destDir, filepath.Join(destDir, filename)
}

func (h *Handler) getUniqueFilePath(sessionID, filename string) (string, string, string) {
	destDir, destPath := h.getFilePath(sessionID, filename)
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return destDir, destPath, filename
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for idx := 1; idx <= 1000; idx++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, idx, ext)
		dir, path := h.getFilePath(sessionID, candidate)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return dir, path, candidate
		}
	}
	fallback := fmt.Sprintf("%s-%d%s", base, time.Now().UnixNano(), ext)
	return destDir, filepath.Join(destDir, fallback), fallback
}
