package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"imitate-server/shared/models"
)

// ParseEvaluationResponse извлекает из текстового ответа модели строгий
// JSON вида {"evaluation": "...", "score": N}. Модели часто оборачивают
// JSON в код-блоки или добавляют служебный текст вокруг, поэтому берем
// первую завершенную фигурную пару.
func ParseEvaluationResponse(responseText string) (*models.EvaluationResult, error) {
	if strings.TrimSpace(responseText) == "" {
		return nil, errors.New("пустой ответ для парсинга")
	}

	cleaned := stripCodeFences(responseText)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("в ответе модели нет JSON-объекта: %q", snippet(responseText))
	}

	// score может прийти дробным - модели не всегда соблюдают целые числа
	var raw struct {
		Evaluation string  `json:"evaluation"`
		Score      float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("не удалось разобрать JSON оценки: %w", err)
	}

	if raw.Evaluation == "" {
		return nil, errors.New("в оценке отсутствует поле evaluation")
	}
	if raw.Score < 0 {
		return nil, fmt.Errorf("недопустимое значение score: %v", raw.Score)
	}

	return &models.EvaluationResult{
		Evaluation: raw.Evaluation,
		Score:      int(raw.Score),
	}, nil
}

// stripCodeFences убирает markdown-ограждения ```json ... ``` вокруг ответа.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx != -1 {
		// Первая строка ограждения может содержать имя языка
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func snippet(text string) string {
	limit := 80
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
