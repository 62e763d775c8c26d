package repository

import (
	"context"
	"errors"
	"fmt"

	"imitate-server/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	getRandomPatientQuery = `
        SELECT id, first_name, last_name, age, sex, pronouns,
               height_cm, weight_kg, temperature_c, heart_rate,
               primary_complaint, personality, symptoms, medical_history, correct_diagnosis
        FROM patients
        ORDER BY random()
        LIMIT 1
    `
	getPatientByIDQuery = `
        SELECT id, first_name, last_name, age, sex, pronouns,
               height_cm, weight_kg, temperature_c, heart_rate,
               primary_complaint, personality, symptoms, medical_history, correct_diagnosis
        FROM patients
        WHERE id = $1
    `
)

// PatientRepository отдает клинические случаи из PostgreSQL.
type PatientRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPatientRepository создает репозиторий случаев.
func NewPatientRepository(db *pgxpool.Pool, logger *zap.Logger) *PatientRepository {
	return &PatientRepository{
		db:     db,
		logger: logger.Named("PatientRepo"),
	}
}

// GetRandom возвращает случайный случай из банка пациентов.
// ORDER BY random() приемлем: банк случаев маленький.
func (r *PatientRepository) GetRandom(ctx context.Context) (*models.Patient, error) {
	var patient models.Patient
	err := pgxscan.Get(ctx, r.db, &patient, getRandomPatientQuery)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Банк пациентов пуст")
			return nil, models.ErrPatientNotFound
		}
		r.logger.Error("Ошибка выборки случайного пациента", zap.Error(err))
		return nil, fmt.Errorf("failed to get random patient: %w", err)
	}
	return &patient, nil
}

// GetByID возвращает случай по идентификатору.
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	var patient models.Patient
	err := pgxscan.Get(ctx, r.db, &patient, getPatientByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPatientNotFound
		}
		r.logger.Error("Ошибка выборки пациента по ID", zap.String("patientID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get patient %s: %w", id, err)
	}
	return &patient, nil
}
