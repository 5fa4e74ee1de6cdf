package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pandaqa/internal/chunker"
	"pandaqa/internal/config"
	"pandaqa/internal/extract"
	"pandaqa/internal/index"
	"pandaqa/internal/metrics"
	"pandaqa/internal/model"
	"pandaqa/internal/transport/http/response"
)

// KBHandler serves the knowledge-base lifecycle: upload, status, clear
// and save/load persistence.
type KBHandler struct {
	cfg      *config.Config
	splitter *chunker.Splitter
	index    *index.Index
	log      *zap.Logger
}

func NewKBHandler(cfg *config.Config, splitter *chunker.Splitter, idx *index.Index, log *zap.Logger) *KBHandler {
	return &KBHandler{cfg: cfg, splitter: splitter, index: idx, log: log}
}

// Upload accepts a multipart file, extracts its text, chunks it and
// indexes the chunks.
func (h *KBHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		response.Error(c, http.StatusBadRequest, "missing file")
		return
	}
	h.log.Info("uploading file", zap.String("filename", file.Filename), zap.Int64("size", file.Size))

	kind, err := extract.Detect(file.Filename)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		response.Error(c, http.StatusBadRequest,
			"unsupported file type. Only txt, md, csv and pdf files are supported")
		return
	}

	if file.Size > h.cfg.MaxUploadBytes() {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		response.Error(c, http.StatusBadRequest,
			fmt.Sprintf("file too large. Maximum allowed size is %d bytes", h.cfg.MaxUploadBytes()))
		return
	}

	f, err := file.Open()
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		response.Error(c, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		response.Error(c, http.StatusInternalServerError, "failed to read file")
		return
	}

	text, err := extract.Text(kind, content)
	if err != nil {
		h.log.Warn("text extraction failed", zap.String("filename", file.Filename), zap.Error(err))
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		response.Error(c, http.StatusBadRequest, "failed to extract text: "+err.Error())
		return
	}

	meta := model.Metadata{"source": file.Filename, "type": string(kind)}
	chunks := h.splitter.Process(text, meta)
	if len(chunks) == 0 {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		response.Error(c, http.StatusBadRequest, "no documents generated from uploaded file")
		return
	}

	if _, err := h.index.Add(c.Request.Context(), chunks); err != nil {
		h.log.Error("indexing uploaded file failed", zap.String("filename", file.Filename), zap.Error(err))
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		response.Error(c, http.StatusInternalServerError, "failed to index documents: "+err.Error())
		return
	}

	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	response.Message(c, fmt.Sprintf("Successfully processed %d documents from %s", len(chunks), file.Filename))
}

// StatusResponse reports readiness and the current entry count.
type StatusResponse struct {
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
}

func (h *KBHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:        "ready",
		DocumentCount: h.index.Count(),
	})
}

func (h *KBHandler) Clear(c *gin.Context) {
	h.index.Clear()
	response.Message(c, "All documents have been cleared")
}

// DirectoryRequest names the directory for save/load. An empty directory
// falls back to the configured default.
type DirectoryRequest struct {
	Directory string `json:"directory"`
}

func (h *KBHandler) Save(c *gin.Context) {
	var req DirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	dir := strings.TrimSpace(req.Directory)
	if dir == "" {
		dir = h.cfg.Storage.DefaultDir
	}

	if err := h.index.Save(dir); err != nil {
		h.log.Error("save knowledge base failed", zap.String("dir", dir), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to save knowledge base")
		return
	}
	response.Message(c, fmt.Sprintf("Successfully saved knowledge base to %s", dir))
}

func (h *KBHandler) Load(c *gin.Context) {
	var req DirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	dir := strings.TrimSpace(req.Directory)
	if dir == "" {
		dir = h.cfg.Storage.DefaultDir
	}

	if err := h.index.Load(dir); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			response.Error(c, http.StatusNotFound, fmt.Sprintf("directory %s does not exist", dir))
			return
		}
		h.log.Error("load knowledge base failed", zap.String("dir", dir), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to load knowledge base")
		return
	}
	response.Message(c, fmt.Sprintf("Successfully loaded knowledge base with %d documents", h.index.Count()))
}
