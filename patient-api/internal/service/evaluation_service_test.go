package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"imitate-server/patient-api/internal/service"
	"imitate-server/patient-api/internal/service/mocks"
	"imitate-server/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func evalRequest() models.EvaluationRequest {
	return models.EvaluationRequest{
		PatientData: models.Patient{
			ID:               uuid.New(),
			FirstName:        "Elsie",
			LastName:         "Brandt",
			Age:              71,
			Sex:              "female",
			Pronouns:         "she/her",
			PrimaryComplaint: "Shortness of breath and swollen ankles",
			Personality:      "Polite but forgetful",
			Symptoms:         "Exertional dyspnea, orthopnea, ankle edema",
			MedicalHistory:   "Atrial fibrillation on warfarin",
			CorrectDiagnosis: "Congestive heart failure",
		},
		ChatHistory:        "Doctor: What brings you in?\nPatient: I get so breathless on the stairs.",
		SubmittedDiagnosis: "heart failure",
		SubmittedAftercare: "diuretics, daily weight monitoring",
		TimeLeft:           212,
	}
}

func TestEvaluationService_Evaluate(t *testing.T) {
	t.Run("промпт содержит случай, транскрипт и сабмит", func(t *testing.T) {
		ai := mocks.NewMockCompletionClient(t)
		ai.On("ChatCompletion", mock.Anything, mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "Congestive heart failure") &&
				strings.Contains(prompt, "heart failure") &&
				strings.Contains(prompt, "breathless on the stairs") &&
				strings.Contains(prompt, "212")
		})).Return(`{"evaluation": "Correct diagnosis, sensible plan.", "score": 44}`, nil).Once()

		svc := service.NewEvaluationService(ai, zap.NewNop())
		result, err := svc.Evaluate(context.Background(), evalRequest())
		require.NoError(t, err)
		assert.Equal(t, 44, result.Score)
		assert.Equal(t, "Correct diagnosis, sensible plan.", result.Evaluation)
		ai.AssertExpectations(t)
	})

	t.Run("счет зажимается в диапазон 0..50", func(t *testing.T) {
		ai := mocks.NewMockCompletionClient(t)
		ai.On("ChatCompletion", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"evaluation": "Over-generous model.", "score": 90}`, nil).Once()

		svc := service.NewEvaluationService(ai, zap.NewNop())
		result, err := svc.Evaluate(context.Background(), evalRequest())
		require.NoError(t, err)
		assert.Equal(t, 50, result.Score)
	})

	t.Run("пустые сабмиты подставляются плейсхолдером", func(t *testing.T) {
		ai := mocks.NewMockCompletionClient(t)
		ai.On("ChatCompletion", mock.Anything, mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "(empty)")
		})).Return(`{"evaluation": "Nothing submitted.", "score": 0}`, nil).Once()

		req := evalRequest()
		req.SubmittedDiagnosis = ""
		req.SubmittedAftercare = "  "

		svc := service.NewEvaluationService(ai, zap.NewNop())
		result, err := svc.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Score)
	})

	t.Run("ошибка LLM пробрасывается", func(t *testing.T) {
		ai := mocks.NewMockCompletionClient(t)
		ai.On("ChatCompletion", mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("rate limited")).Once()

		svc := service.NewEvaluationService(ai, zap.NewNop())
		_, err := svc.Evaluate(context.Background(), evalRequest())
		assert.ErrorIs(t, err, models.ErrUpstreamAI)
	})

	t.Run("неразбираемый ответ - ошибка", func(t *testing.T) {
		ai := mocks.NewMockCompletionClient(t)
		ai.On("ChatCompletion", mock.Anything, mock.Anything, mock.Anything).
			Return("You did great, ten out of ten!", nil).Once()

		svc := service.NewEvaluationService(ai, zap.NewNop())
		_, err := svc.Evaluate(context.Background(), evalRequest())
		assert.ErrorIs(t, err, models.ErrUpstreamAI)
	})
}
