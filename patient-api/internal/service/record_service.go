package service

import (
	"context"
	"fmt"

	"imitate-server/patient-api/internal/repository"
	"imitate-server/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordService объединяет репозиторий записей и кэш таблицы лидеров.
type RecordService struct {
	repo   *repository.RecordRepository
	cache  *repository.LeaderboardCache
	logger *zap.Logger
}

// NewRecordService создает сервис записей.
func NewRecordService(repo *repository.RecordRepository, cache *repository.LeaderboardCache, logger *zap.Logger) *RecordService {
	return &RecordService{
		repo:   repo,
		cache:  cache,
		logger: logger.Named("RecordService"),
	}
}

// AddScore прибавляет очки и сбрасывает кэш таблицы лидеров.
func (s *RecordService) AddScore(ctx context.Context, userID uuid.UUID, score int) error {
	if score < 0 {
		return fmt.Errorf("%w: отрицательный счет %d", models.ErrBadRequest, score)
	}
	if err := s.repo.AddScore(ctx, userID, score); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// AddMatch сохраняет запись сыгранного случая.
func (s *RecordService) AddMatch(ctx context.Context, userID uuid.UUID, record models.MatchRecord) error {
	return s.repo.AddMatch(ctx, userID, record)
}

// GetHistory возвращает историю матчей пользователя.
func (s *RecordService) GetHistory(ctx context.Context, userID uuid.UUID, limit int) ([]repository.HistoryEntry, error) {
	return s.repo.GetHistory(ctx, userID, limit)
}

// GetProfile возвращает профиль пользователя.
func (s *RecordService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// SetUsername задает отображаемое имя и сбрасывает кэш таблицы лидеров.
func (s *RecordService) SetUsername(ctx context.Context, userID uuid.UUID, username string) error {
	if username == "" {
		return fmt.Errorf("%w: пустое имя", models.ErrBadRequest)
	}
	if err := s.repo.SetUsername(ctx, userID, username); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// GetLeaderboard возвращает таблицу лидеров, по возможности из кэша.
func (s *RecordService) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if cached, err := s.cache.Get(ctx); err == nil && cached != nil {
		return cached, nil
	}

	entries, err := s.repo.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, entries); err != nil {
		// Кэш не критичен, таблица уже получена.
		s.logger.Debug("Таблица лидеров не закэширована", zap.Error(err))
	}
	return entries, nil
}
