package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/asaadkhaja99/rabbit-hole/internal/annotate"
	"github.com/asaadkhaja99/rabbit-hole/internal/api/dto"
	"github.com/asaadkhaja99/rabbit-hole/internal/prompt"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
	"github.com/asaadkhaja99/rabbit-hole/internal/relay"
	"github.com/gin-gonic/gin"
)

const invalidBody = "Invalid request body"

var (
	chatMessages = map[string]string{
		"Question": "Both question and context are required",
		"Context":  "Both question and context are required",
	}
	formulaMessages = map[string]string{
		"Formula": "Formula is required",
	}
	imageMessages = map[string]string{
		"ImageBase64": "image_base64 is required",
	}
	annotateMessages = map[string]string{
		"ImageBase64": "image_base64 is required",
		"Question":    "question is required",
		"AspectRatio": "aspect_ratio must be a positive number",
	}
)

// ChatHandler serves the streaming explanation endpoints and equation annotation
type ChatHandler struct {
	logger    *slog.Logger
	relay     Streamer
	prompts   *prompt.Set
	annotator Annotator
}

// NewChatHandler creates a new ChatHandler instance
func NewChatHandler(deps *Dependencies) *ChatHandler {
	return &ChatHandler{
		logger:    deps.Logger,
		relay:     deps.Relay,
		prompts:   deps.Prompts,
		annotator: deps.Annotator,
	}
}

// Chat handles POST /api/chat/stream
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, invalidBody, chatMessages)
		return
	}

	history := make([]prompt.Message, len(req.History))
	for i, m := range req.History {
		history[i] = prompt.Message{Role: m.Role, Content: m.Content}
	}

	var tools []provider.Tool
	if req.FileSearchStoreID != "" {
		tools = append(tools, provider.FileSearchTool(req.FileSearchStoreID))
	}

	h.stream(c, relay.Spec{
		Name:              "chat",
		Conversation:      prompt.ChatConversation(req.Question, req.Context, req.Page, history),
		SystemInstruction: h.prompts.Chat.SystemPrompt,
		Temperature:       h.prompts.Chat.Temperature,
		Tools:             tools,
	})
}

// Formula handles GET /api/chat/formula
func (h *ChatHandler) Formula(c *gin.Context) {
	var q dto.FormulaQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err, "Invalid query parameters", formulaMessages)
		return
	}

	h.stream(c, relay.Spec{
		Name:              "formula",
		Conversation:      prompt.FormulaConversation(q.Formula, q.Context, q.Page),
		SystemInstruction: h.prompts.Formula.SystemPrompt,
		Temperature:       h.prompts.Formula.Temperature,
	})
}

// Figure handles POST /api/chat/figure
func (h *ChatHandler) Figure(c *gin.Context) {
	var req dto.FigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, invalidBody, imageMessages)
		return
	}

	image, err := prompt.DecodeImage("image_base64", req.ImageBase64)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.stream(c, relay.Spec{
		Name:              "figure",
		Conversation:      prompt.FigureConversation(image, req.Caption, req.Context, req.Page),
		SystemInstruction: h.prompts.Figure.SystemPrompt,
		Temperature:       h.prompts.Figure.Temperature,
	})
}

// Equation handles POST /api/chat/equation. It shares the formula instruction.
func (h *ChatHandler) Equation(c *gin.Context) {
	var req dto.EquationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, invalidBody, imageMessages)
		return
	}

	image, err := prompt.DecodeImage("image_base64", req.ImageBase64)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.stream(c, relay.Spec{
		Name:              "equation",
		Conversation:      prompt.EquationConversation(image, req.Label, req.Context, req.Page),
		SystemInstruction: h.prompts.Formula.SystemPrompt,
		Temperature:       h.prompts.Formula.Temperature,
	})
}

// Annotate handles POST /api/equation/annotate
func (h *ChatHandler) Annotate(c *gin.Context) {
	var req dto.EquationAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, invalidBody, annotateMessages)
		return
	}

	image, err := h.annotator.Annotate(c.Request.Context(), annotate.Request{
		ImageBase64: req.ImageBase64,
		Question:    req.Question,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.EquationAnnotationResponse{ImageBase64: image})
}

// stream opens the event stream and relays the session into it
func (h *ChatHandler) stream(c *gin.Context, spec relay.Spec) {
	sse, err := relay.NewSSEWriter(c.Writer)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.relay.Stream(c.Request.Context(), spec, sse.Emit); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, c.Request.Context().Err()) {
			level = slog.LevelInfo
		}
		h.logger.Log(c.Request.Context(), level, "Stream closed before completion",
			slog.String("endpoint", spec.Name),
			slog.Any("error", err),
		)
	}
}
