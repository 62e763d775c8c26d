package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"imitate-server/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	addScoreQuery = `
        INSERT INTO profiles (user_id, total_score, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (user_id) DO UPDATE SET
            total_score = profiles.total_score + EXCLUDED.total_score,
            updated_at = now()
    `
	insertMatchQuery = `
        INSERT INTO matches (user_id, patient_info, submitted_diagnosis, submitted_aftercare, score, feedback, time_left)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	getHistoryQuery = `
        SELECT patient_info, submitted_diagnosis, submitted_aftercare, score, feedback, time_left, created_at
        FROM matches
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	getProfileQuery = `
        SELECT user_id, username, total_score
        FROM profiles
        WHERE user_id = $1
    `
	setUsernameQuery = `
        INSERT INTO profiles (user_id, username, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (user_id) DO UPDATE SET
            username = EXCLUDED.username,
            updated_at = now()
    `
	getLeaderboardQuery = `
        SELECT username, total_score
        FROM profiles
        WHERE username <> ''
        ORDER BY total_score DESC, username
        LIMIT $1
    `
)

// matchRow - строка таблицы matches. patient_info хранится как jsonb.
type matchRow struct {
	PatientInfo        []byte    `db:"patient_info"`
	SubmittedDiagnosis string    `db:"submitted_diagnosis"`
	SubmittedAftercare string    `db:"submitted_aftercare"`
	Score              int       `db:"score"`
	Feedback           string    `db:"feedback"`
	TimeLeft           int       `db:"time_left"`
	CreatedAt          time.Time `db:"created_at"`
}

// HistoryEntry - запись истории с временем создания.
type HistoryEntry struct {
	models.MatchRecord
	CreatedAt time.Time `json:"created_at"`
}

// RecordRepository хранит профили и историю матчей в PostgreSQL.
type RecordRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRecordRepository создает репозиторий записей.
func NewRecordRepository(db *pgxpool.Pool, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger.Named("RecordRepo"),
	}
}

// AddScore прибавляет очки к накопленному счету пользователя.
func (r *RecordRepository) AddScore(ctx context.Context, userID uuid.UUID, score int) error {
	_, err := r.db.Exec(ctx, addScoreQuery, userID, score)
	if err != nil {
		r.logger.Error("Ошибка записи счета", zap.String("userID", userID.String()), zap.Error(err))
		return fmt.Errorf("failed to add score for user %s: %w", userID, err)
	}
	return nil
}

// AddMatch сохраняет полную запись сыгранного случая.
func (r *RecordRepository) AddMatch(ctx context.Context, userID uuid.UUID, record models.MatchRecord) error {
	patientJSON, err := json.Marshal(record.PatientInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal patient info: %w", err)
	}

	_, err = r.db.Exec(ctx, insertMatchQuery,
		userID, patientJSON,
		record.SubmittedDiagnosis, record.SubmittedAftercare,
		record.Score, record.Feedback, record.Time,
	)
	if err != nil {
		r.logger.Error("Ошибка записи матча", zap.String("userID", userID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert match for user %s: %w", userID, err)
	}
	return nil
}

// GetHistory возвращает последние матчи пользователя, новые первыми.
func (r *RecordRepository) GetHistory(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []matchRow
	err := pgxscan.Select(ctx, r.db, &rows, getHistoryQuery, userID, limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []HistoryEntry{}, nil
		}
		r.logger.Error("Ошибка выборки истории", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get history for user %s: %w", userID, err)
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := HistoryEntry{
			MatchRecord: models.MatchRecord{
				SubmittedDiagnosis: row.SubmittedDiagnosis,
				SubmittedAftercare: row.SubmittedAftercare,
				Score:              row.Score,
				Feedback:           row.Feedback,
				Time:               row.TimeLeft,
			},
			CreatedAt: row.CreatedAt,
		}
		if err := json.Unmarshal(row.PatientInfo, &entry.PatientInfo); err != nil {
			// Битая запись не должна ронять всю историю.
			r.logger.Warn("Не удалось разобрать patient_info записи истории", zap.Error(err))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetProfile возвращает профиль пользователя.
func (r *RecordRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := pgxscan.Get(ctx, r.db, &profile, getProfileQuery, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProfileNotFound
		}
		r.logger.Error("Ошибка выборки профиля", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get profile for user %s: %w", userID, err)
	}
	return &profile, nil
}

// SetUsername задает отображаемое имя пользователя.
func (r *RecordRepository) SetUsername(ctx context.Context, userID uuid.UUID, username string) error {
	_, err := r.db.Exec(ctx, setUsernameQuery, userID, username)
	if err != nil {
		r.logger.Error("Ошибка обновления имени", zap.String("userID", userID.String()), zap.Error(err))
		return fmt.Errorf("failed to set username for user %s: %w", userID, err)
	}
	return nil
}

// GetLeaderboard возвращает верх таблицы лидеров по накопленному счету.
func (r *RecordRepository) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []struct {
		Username   string `db:"username"`
		TotalScore int    `db:"total_score"`
	}
	err := pgxscan.Select(ctx, r.db, &rows, getLeaderboardQuery, limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []models.LeaderboardEntry{}, nil
		}
		r.logger.Error("Ошибка выборки таблицы лидеров", zap.Error(err))
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, models.LeaderboardEntry{
			Rank:       i + 1,
			Username:   row.Username,
			TotalScore: row.TotalScore,
		})
	}
	return entries, nil
}
