package handler

import (
	"errors"
	"net/http"
	"strconv"

	"imitate-server/patient-api/internal/repository"
	"imitate-server/patient-api/internal/service"
	"imitate-server/shared/middleware"
	"imitate-server/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// APIHandler обрабатывает HTTP запросы patient-api.
type APIHandler struct {
	patients   *repository.PatientRepository
	chat       *service.ChatService
	evaluation *service.EvaluationService
	records    *service.RecordService
	logger     *zap.Logger
}

// NewAPIHandler создает обработчик patient-api.
func NewAPIHandler(
	patients *repository.PatientRepository,
	chat *service.ChatService,
	evaluation *service.EvaluationService,
	records *service.RecordService,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		patients:   patients,
		chat:       chat,
		evaluation: evaluation,
		records:    records,
		logger:     logger.Named("APIHandler"),
	}
}

// RegisterRoutes навешивает маршруты. Чат и оценка не требуют токена:
// они не читают и не пишут пользовательские данные.
func (h *APIHandler) RegisterRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.POST("/chat", h.Chat)
	router.POST("/evaluate", h.Evaluate)

	authed := router.Group("/", authMiddleware)
	authed.GET("/patients/random", h.RandomPatient)
	authed.POST("/addScore", h.AddScore)
	authed.POST("/addMatch", h.AddMatch)
	authed.GET("/fetchHistory", h.FetchHistory)
	authed.GET("/getProfile", h.GetProfile)
	authed.POST("/setUsername", h.SetUsername)
	authed.GET("/getLeaderboard", h.GetLeaderboard)
}

// RandomPatient возвращает случайный случай из банка пациентов.
func (h *APIHandler) RandomPatient(c *gin.Context) {
	patient, err := h.patients.GetRandom(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient": patient})
}

type chatRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Chat возвращает следующую реплику симулируемого пациента.
func (h *APIHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	reply, err := h.chat.Reply(c.Request.Context(), req.Prompt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// Evaluate оценивает завершенный случай.
func (h *APIHandler) Evaluate(c *gin.Context) {
	var req models.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.evaluation.Evaluate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type addScoreRequest struct {
	Score *int `json:"score" binding:"required"`
}

// AddScore прибавляет очки к профилю пользователя.
func (h *APIHandler) AddScore(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req addScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	if err := h.records.AddScore(c.Request.Context(), userID, *req.Score); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddMatch сохраняет запись сыгранного случая.
func (h *APIHandler) AddMatch(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var record models.MatchRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	if err := h.records.AddMatch(c.Request.Context(), userID, record); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FetchHistory возвращает историю матчей пользователя, новые первыми.
func (h *APIHandler) FetchHistory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.records.GetHistory(c.Request.Context(), userID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// GetProfile возвращает профиль пользователя.
func (h *APIHandler) GetProfile(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	profile, err := h.records.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type setUsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

// SetUsername задает отображаемое имя пользователя.
func (h *APIHandler) SetUsername(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req setUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	if err := h.records.SetUsername(c.Request.Context(), userID, req.Username); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLeaderboard возвращает таблицу лидеров.
func (h *APIHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	entries, err := h.records.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// userID достает идентификатор пользователя из контекста Gin.
func (h *APIHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "User ID not found in context"})
		return uuid.Nil, false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		h.logger.Error("Неверный тип userID в контексте")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.ErrCodeInternal, Message: "Internal server error"})
		return uuid.Nil, false
	}
	return userID, true
}

// respondError переводит доменные ошибки в HTTP статусы.
func (h *APIHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrPatientNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "No patients available"})
	case errors.Is(err, models.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "Profile not found"})
	case errors.Is(err, models.ErrBadRequest):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()})
	case errors.Is(err, models.ErrUpstreamAI):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Code: models.ErrCodeUpstream, Message: "AI provider error"})
	default:
		h.logger.Error("Внутренняя ошибка patient-api", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.ErrCodeInternal, Message: "Internal server error"})
	}
}
