package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/assistant-relay/internal/chat"
	"github.com/wuwenbin0122/assistant-relay/internal/limiter"
	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

const (
	HeaderAssistantType = "X-Assistant-Type"
	// HeaderRunStatus exposes the terminal run status. A failed run is still
	// answered with 200, so this is how callers tell the two apart.
	HeaderRunStatus = "X-Run-Status"

	invalidAssistantTypeDetail = "Invalid assistant type"
)

type Handler struct {
	chat    *chat.Service
	limiter *limiter.Limiter
	logger  *zap.Logger
}

func NewHandler(chatService *chat.Service, l *limiter.Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chat: chatService, limiter: l, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.handleHealth)
	router.POST("/chat", h.handleChat)
	router.POST("/chat_existing_thread", h.handleChatExistingThread)
}

type chatRequest struct {
	Message *string `json:"message" binding:"required"`
}

type threadChatRequest struct {
	Message  *string `json:"message" binding:"required"`
	ThreadID *string `json:"thread_id" binding:"required"`
}

type chatResponse struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

var errEmptyThreadID = errors.New("thread_id must not be empty")

func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.dispatch(c, chat.ChatRequest{
		Message: *req.Message,
		Variant: c.GetHeader(HeaderAssistantType),
	})
}

func (h *Handler) handleChatExistingThread(c *gin.Context) {
	var req threadChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	threadID := strings.TrimSpace(*req.ThreadID)
	if threadID == "" {
		writeError(c, http.StatusUnprocessableEntity, errEmptyThreadID.Error())
		return
	}

	h.dispatch(c, chat.ChatRequest{
		Message:  *req.Message,
		ThreadID: threadID,
		Variant:  c.GetHeader(HeaderAssistantType),
	})
}

func (h *Handler) dispatch(c *gin.Context, req chat.ChatRequest) {
	result, err := h.chat.Handle(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrInvalidAssistantType):
			utils.LoggerFrom(c.Request.Context(), h.logger).Debug("rejected assistant type", zap.String("assistant_type", req.Variant))
			writeError(c, http.StatusBadRequest, invalidAssistantTypeDetail)
		default:
			writeError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if result.Status != "" {
		c.Header(HeaderRunStatus, string(result.Status))
	}
	c.JSON(http.StatusOK, chatResponse{Message: result.Message, ThreadID: result.ThreadID})
}

func (h *Handler) handleHealth(c *gin.Context) {
	mode := "single"
	var variants []string
	if registry := h.chat.Registry(); registry != nil && registry.MultiVariant() {
		mode = "variants"
		variants = registry.Labels()
	}

	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"mode":      mode,
	}
	if variants != nil {
		body["variants"] = variants
	}
	if h.limiter != nil {
		body["limiter"] = gin.H{
			"capacity":  h.limiter.Capacity(),
			"in_flight": h.limiter.InFlight(),
		}
	}

	c.JSON(http.StatusOK, body)
}

func writeError(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}
