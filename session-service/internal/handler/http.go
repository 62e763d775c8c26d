package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"imitate-server/session-service/internal/dictation"
	"imitate-server/session-service/internal/session"
	"imitate-server/shared/middleware"
	"imitate-server/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Проверяем origin запроса (в продакшене здесь должна быть проверка)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionHandler обрабатывает HTTP и WebSocket запросы практических сессий.
type SessionHandler struct {
	manager          *session.Manager
	dictationSilence time.Duration
	logger           *zap.Logger

	// Не больше одной диктовки на сессию одновременно.
	dictMu   sync.Mutex
	dictBusy map[uuid.UUID]bool
}

// NewSessionHandler создает обработчик сессий.
func NewSessionHandler(manager *session.Manager, dictationSilence time.Duration, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager:          manager,
		dictationSilence: dictationSilence,
		logger:           logger.Named("SessionHandler"),
		dictBusy:         make(map[uuid.UUID]bool),
	}
}

// RegisterRoutes навешивает маршруты сессий на защищенную группу.
func (h *SessionHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/sessions", h.CreateSession)
	group.GET("/sessions/:id", h.GetSession)
	group.POST("/sessions/:id/begin", h.BeginCheckup)
	group.POST("/sessions/:id/messages", h.SendMessage)
	group.PUT("/sessions/:id/drafts", h.SetDrafts)
	group.POST("/sessions/:id/submit", h.Submit)
	group.POST("/sessions/:id/next", h.NextCase)
	group.DELETE("/sessions/:id", h.DeleteSession)
	group.GET("/sessions/:id/dictation", h.Dictation)
}

// CreateSession создает сессию и сразу загружает первый случай.
// Неудачная загрузка не фатальна: сессия возвращается в no-case с
// видимой ошибкой, клиент может повторить через /next.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID, bearer, ok := h.identity(c)
	if !ok {
		return
	}

	ctrl := h.manager.Create(userID, bearer)
	if err := ctrl.LoadCase(c.Request.Context()); err != nil {
		h.logger.Warn("Первый случай не загрузился при создании сессии",
			zap.String("sessionID", ctrl.ID().String()), zap.Error(err))
	}

	c.JSON(http.StatusCreated, ctrl.Snapshot())
}

// GetSession возвращает срез состояния сессии.
func (h *SessionHandler) GetSession(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// BeginCheckup переводит сессию intro -> active и запускает отсчет.
func (h *SessionHandler) BeginCheckup(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	if err := ctrl.BeginCheckup(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage добавляет реплику студента и возвращает ответ пациента.
func (h *SessionHandler) SendMessage(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	turn, err := ctrl.SendMessage(c.Request.Context(), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": turn})
}

type draftsRequest struct {
	Diagnosis string `json:"diagnosis"`
	Aftercare string `json:"aftercare"`
}

// SetDrafts обновляет черновики диагноза и плана наблюдения.
func (h *SessionHandler) SetDrafts(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	var req draftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	if err := ctrl.SetDrafts(req.Diagnosis, req.Aftercare); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Submit явно отправляет случай на оценку.
func (h *SessionHandler) Submit(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	if _, err := ctrl.SubmitEvaluation(c.Request.Context(), session.SubmitReasonManual); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// NextCase загружает следующий случай (results -> no-case -> intro).
// Работает и как повтор после неудачной первой загрузки.
func (h *SessionHandler) NextCase(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	if err := ctrl.LoadCase(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// DeleteSession закрывает сессию и удаляет ее из реестра.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	h.manager.Remove(ctrl.ID())
	c.Status(http.StatusNoContent)
}

// Dictation обслуживает сеанс диктовки: клиент стримит события своего
// распознавателя речи по WebSocket, сервер собирает текст и по тишине
// или прерыванию возвращает итоговый кадр transcript.
func (h *SessionHandler) Dictation(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	if !h.acquireDictation(ctrl.ID()) {
		h.respondError(c, models.ErrDictationBusy)
		return
	}
	defer h.releaseDictation(ctrl.ID())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Не удалось установить WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	recognizer := dictation.NewWSRecognizer(conn, h.logger)
	bridge := dictation.NewBridge(recognizer, dictation.Config{
		InactivityTimeout: h.dictationSilence,
	}, h.logger)

	text, err := bridge.Listen(c.Request.Context())
	if err != nil {
		h.logger.Error("Диктовка завершилась ошибкой", zap.Error(err))
		_ = recognizer.WriteError(err.Error())
		return
	}

	if writeErr := recognizer.WriteResult(text); writeErr != nil {
		h.logger.Warn("Не удалось отправить итог диктовки", zap.Error(writeErr))
	}
}

// session извлекает сессию по :id и проверяет владельца.
func (h *SessionHandler) session(c *gin.Context) (*session.Controller, bool) {
	userID, _, ok := h.identity(c)
	if !ok {
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid session ID format"})
		return nil, false
	}

	ctrl, err := h.manager.Get(id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if ctrl.Owner() != userID {
		// Чужая сессия неотличима от несуществующей.
		h.respondError(c, models.ErrSessionNotFound)
		return nil, false
	}
	return ctrl, true
}

// identity достает userID и исходный токен из контекста Gin.
func (h *SessionHandler) identity(c *gin.Context) (uuid.UUID, string, bool) {
	userIDVal, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "User ID not found in context"})
		return uuid.Nil, "", false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		h.logger.Error("Неверный тип userID в контексте")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: models.ErrCodeInternal, Message: "Internal server error"})
		return uuid.Nil, "", false
	}
	bearer := c.GetString(middleware.ContextTokenKey)
	return userID, bearer, true
}

func (h *SessionHandler) acquireDictation(id uuid.UUID) bool {
	h.dictMu.Lock()
	defer h.dictMu.Unlock()
	if h.dictBusy[id] {
		return false
	}
	h.dictBusy[id] = true
	return true
}

func (h *SessionHandler) releaseDictation(id uuid.UUID) {
	h.dictMu.Lock()
	defer h.dictMu.Unlock()
	delete(h.dictBusy, id)
}

// respondError переводит доменные ошибки в HTTP статусы.
func (h *SessionHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "Session not found"})
	case errors.Is(err, models.ErrBadRequest), errors.Is(err, models.ErrMalformedPatient):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()})
	case errors.Is(err, models.ErrCaseAlreadyActive),
		errors.Is(err, models.ErrLoadInProgress),
		errors.Is(err, models.ErrChatInProgress),
		errors.Is(err, models.ErrSubmitInProgress),
		errors.Is(err, models.ErrSessionNotActive),
		errors.Is(err, models.ErrSessionNotInIntro),
		errors.Is(err, models.ErrCaseNotLoaded),
		errors.Is(err, models.ErrDictationBusy):
		c.JSON(http.StatusConflict, models.ErrorResponse{Code: models.ErrCodeConflict, Message: err.Error()})
	default:
		h.logger.Error("Ошибка вышестоящего сервиса", zap.Error(err))
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Code: models.ErrCodeUpstream, Message: "Upstream service error"})
	}
}
