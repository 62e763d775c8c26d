package service

import (
	"context"
	"fmt"
	"strings"

	"imitate-server/pkg/ai"
	"imitate-server/shared/models"

	"go.uber.org/zap"
)

// maxScore - максимум очков за случай.
const maxScore = 50

const evaluationSystemPrompt = `You are a strict medical examiner grading a student's
performance in a simulated patient encounter. You receive the full case description
(including the correct diagnosis), the conversation transcript, the student's submitted
diagnosis and aftercare plan, and the seconds left on the clock.

Grade out of 50 points: diagnosis correctness, quality of history taking in the
conversation, and the aftercare plan. Unused time is a minor bonus, not a substitute
for correctness.

Respond with a single JSON object and nothing else:
{"evaluation": "<2-4 sentences of concrete feedback>", "score": <integer 0-50>}`

// EvaluationService оценивает завершенный случай через LLM.
type EvaluationService struct {
	ai     CompletionClient
	logger *zap.Logger
}

// NewEvaluationService создает сервис оценки.
func NewEvaluationService(ai CompletionClient, logger *zap.Logger) *EvaluationService {
	return &EvaluationService{
		ai:     ai,
		logger: logger.Named("EvaluationService"),
	}
}

// Evaluate выставляет вердикт и счет за случай.
func (s *EvaluationService) Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.EvaluationResult, error) {
	prompt := buildEvaluationPrompt(req)

	raw, err := s.ai.ChatCompletion(ctx, evaluationSystemPrompt, prompt)
	if err != nil {
		s.logger.Error("LLM не вернул оценку", zap.Error(err))
		return nil, fmt.Errorf("%w: evaluation completion failed: %v", models.ErrUpstreamAI, err)
	}

	result, err := ai.ParseEvaluationResponse(raw)
	if err != nil {
		s.logger.Error("Ответ оценщика не разобран", zap.Error(err), zap.String("raw", raw))
		return nil, fmt.Errorf("%w: failed to parse evaluation response: %v", models.ErrUpstreamAI, err)
	}

	// Счет зажимается в допустимый диапазон, модели иногда выходят за него.
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > maxScore {
		result.Score = maxScore
	}

	s.logger.Info("Случай оценен",
		zap.String("diagnosis", req.SubmittedDiagnosis),
		zap.Int("score", result.Score))
	return result, nil
}

func buildEvaluationPrompt(req models.EvaluationRequest) string {
	var b strings.Builder
	b.WriteString("Case description:\n")
	b.WriteString(req.PatientData.ContextString())
	fmt.Fprintf(&b, "\nCorrect diagnosis: %s\n", req.PatientData.CorrectDiagnosis)
	b.WriteString("\nConversation transcript:\n")
	if strings.TrimSpace(req.ChatHistory) == "" {
		b.WriteString("(no conversation)\n")
	} else {
		b.WriteString(req.ChatHistory)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nSubmitted diagnosis: %s\n", emptyAs(req.SubmittedDiagnosis, "(empty)"))
	fmt.Fprintf(&b, "Submitted aftercare plan: %s\n", emptyAs(req.SubmittedAftercare, "(empty)"))
	fmt.Fprintf(&b, "Seconds left on the clock: %d\n", req.TimeLeft)
	return b.String()
}

func emptyAs(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
