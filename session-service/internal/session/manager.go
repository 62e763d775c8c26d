package session

import (
	"sync"

	"imitate-server/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager - реестр живых сессий. HTTP-слой создает сессию на пользователя
// и дальше обращается к ней по идентификатору.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Controller

	oracle  Oracle
	records RecordStore
	cfg     Config
	logger  *zap.Logger
}

// NewManager создает пустой реестр сессий.
func NewManager(oracle Oracle, records RecordStore, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[uuid.UUID]*Controller),
		oracle:   oracle,
		records:  records,
		cfg:      cfg,
		logger:   logger,
	}
}

// Create регистрирует новую сессию пользователя и возвращает ее.
func (m *Manager) Create(owner uuid.UUID, bearer string) *Controller {
	id := uuid.New()
	ctrl := NewController(id, owner, bearer, m.oracle, m.records, m.cfg, m.logger)

	m.mu.Lock()
	m.sessions[id] = ctrl
	m.mu.Unlock()

	m.logger.Info("Сессия создана", zap.String("sessionID", id.String()))
	return ctrl
}

// Get возвращает сессию по идентификатору.
func (m *Manager) Get(id uuid.UUID) (*Controller, error) {
	m.mu.RLock()
	ctrl, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return ctrl, nil
}

// Remove закрывает сессию и удаляет ее из реестра.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	ctrl, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		ctrl.Close()
		m.logger.Info("Сессия удалена", zap.String("sessionID", id.String()))
	}
}

// Close закрывает все сессии. Вызывается при остановке сервиса.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ctrl := range m.sessions {
		ctrl.Close()
		delete(m.sessions, id)
	}
}
