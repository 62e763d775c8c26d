package repository_test // Используем _test пакет для изоляции

import (
	"context"
	"testing"
	"time"

	"imitate-server/patient-api/internal/repository"
	"imitate-server/pkg/migration"
	"imitate-server/shared/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoryTestSuite содержит состояние интеграционных тестов репозиториев
type RepositoryTestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pgPool      *pgxpool.Pool
	patients    *repository.PatientRepository
	records     *repository.RecordRepository
	logger      *zap.Logger
}

// SetupSuite выполняется один раз перед всеми тестами в наборе
func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err, "Failed to create logger for tests")

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get postgres connection string")

	s.pgPool, err = pgxpool.New(s.ctx, pgConnStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	// Применяем встроенные миграции (включая сидовые случаи)
	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: "migrations",
		MigrationsFS:   repository.MigrationsFS,
	}, s.pgPool)
	require.NoError(s.T(), migrator.Up(s.ctx), "Failed to run migrations")

	s.patients = repository.NewPatientRepository(s.pgPool, s.logger)
	s.records = repository.NewRecordRepository(s.pgPool, s.logger)
}

// TearDownSuite выполняется один раз после всех тестов в наборе
func (s *RepositoryTestSuite) TearDownSuite() {
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate postgres container", zap.Error(err))
		}
	}
}

// Перед каждым тестом очищаем пользовательские таблицы (банк пациентов не трогаем)
func (s *RepositoryTestSuite) SetupTest() {
	_, err := s.pgPool.Exec(s.ctx, "TRUNCATE TABLE profiles, matches RESTART IDENTITY")
	require.NoError(s.T(), err, "Failed to truncate tables")
}

// TestRepositoryTestSuite запускает набор тестов
func TestRepositoryTestSuite(t *testing.T) {
	// Пропускаем тесты, если запущены с флагом -short
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) TestGetRandomPatient() {
	t := s.T()

	patient, err := s.patients.GetRandom(s.ctx)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, patient.ID)
	require.NotEmpty(t, patient.FirstName)
	require.Greater(t, patient.Age, 0)
	require.NotEmpty(t, patient.CorrectDiagnosis)

	byID, err := s.patients.GetByID(s.ctx, patient.ID.String())
	require.NoError(t, err)
	require.Equal(t, patient.ID, byID.ID)
}

func (s *RepositoryTestSuite) TestAddScoreAccumulates() {
	t := s.T()
	userID := uuid.New()

	require.NoError(t, s.records.AddScore(s.ctx, userID, 30))
	require.NoError(t, s.records.AddScore(s.ctx, userID, 12))

	profile, err := s.records.GetProfile(s.ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 42, profile.TotalScore)
}

func (s *RepositoryTestSuite) TestMatchHistoryRoundTrip() {
	t := s.T()
	userID := uuid.New()

	patient, err := s.patients.GetRandom(s.ctx)
	require.NoError(t, err)

	record := models.MatchRecord{
		PatientInfo:        *patient,
		SubmittedDiagnosis: "angina",
		SubmittedAftercare: "rest",
		Score:              41,
		Feedback:           "Good reasoning",
		Time:               550,
	}
	require.NoError(t, s.records.AddMatch(s.ctx, userID, record))

	// Вторая, более поздняя запись
	record2 := record
	record2.Score = 17
	record2.SubmittedDiagnosis = "flu"
	require.NoError(t, s.records.AddMatch(s.ctx, userID, record2))

	history, err := s.records.GetHistory(s.ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Новые записи первыми
	require.Equal(t, "flu", history[0].SubmittedDiagnosis)
	require.Equal(t, "angina", history[1].SubmittedDiagnosis)
	require.Equal(t, patient.ID, history[1].PatientInfo.ID)
	require.Equal(t, 550, history[1].Time)

	// Чужая история пуста
	other, err := s.records.GetHistory(s.ctx, uuid.New(), 10)
	require.NoError(t, err)
	require.Empty(t, other)
}

func (s *RepositoryTestSuite) TestProfileNotFound() {
	t := s.T()
	_, err := s.records.GetProfile(s.ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrProfileNotFound)
}

func (s *RepositoryTestSuite) TestLeaderboardOrdering() {
	t := s.T()

	users := []struct {
		name  string
		score int
	}{
		{"alice", 120},
		{"bob", 95},
		{"carol", 150},
	}
	for _, u := range users {
		id := uuid.New()
		require.NoError(t, s.records.SetUsername(s.ctx, id, u.name))
		require.NoError(t, s.records.AddScore(s.ctx, id, u.score))
	}

	// Профиль без имени в таблицу не попадает
	require.NoError(t, s.records.AddScore(s.ctx, uuid.New(), 999))

	entries, err := s.records.GetLeaderboard(s.ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "carol", entries[0].Username)
	require.Equal(t, 150, entries[0].TotalScore)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "alice", entries[1].Username)
	require.Equal(t, "bob", entries[2].Username)
}
