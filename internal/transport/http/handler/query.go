package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pandaqa/internal/ai"
	"pandaqa/internal/retriever"
	"pandaqa/internal/transport/http/response"
)

// QueryHandler serves question answering and the generation-backend
// status probe.
type QueryHandler struct {
	retriever *retriever.Retriever
	generator ai.Generator
	log       *zap.Logger
}

func NewQueryHandler(r *retriever.Retriever, g ai.Generator, log *zap.Logger) *QueryHandler {
	return &QueryHandler{retriever: r, generator: g, log: log}
}

type QueryRequest struct {
	Text string `json:"text" binding:"required"`
	TopK int    `json:"top_k"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	h.log.Info("processing query", zap.String("query", req.Text), zap.Int("top_k", req.TopK))

	result, err := h.retriever.AnswerQuery(c.Request.Context(), req.Text, req.TopK)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "query failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// LMStatusResponse reports reachability of the generation backend.
type LMStatusResponse struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
	APIBase   string `json:"api_base"`
}

func (h *QueryHandler) LMStatus(c *gin.Context) {
	status := h.generator.CheckConnection(c.Request.Context())
	c.JSON(http.StatusOK, LMStatusResponse{
		Connected: status.Connected,
		Message:   status.Message,
		APIBase:   h.generator.APIBase(),
	})
}
