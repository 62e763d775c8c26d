package service

import (
	"context"
	"fmt"
	"strings"

	"imitate-server/shared/models"

	"go.uber.org/zap"
)

// CompletionClient - клиент LLM, генерирующий ответ на промпт.
type CompletionClient interface {
	ChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const chatSystemPrompt = `You are a simulated patient in a medical training application.
The user prompt contains the patient description and the conversation so far.
Answer with the patient's next reply only: stay in character, keep the answer short
and conversational, and never reveal or hint at the correct diagnosis.`

// ChatService генерирует реплики симулируемого пациента.
type ChatService struct {
	ai     CompletionClient
	logger *zap.Logger
}

// NewChatService создает сервис чата.
func NewChatService(ai CompletionClient, logger *zap.Logger) *ChatService {
	return &ChatService{
		ai:     ai,
		logger: logger.Named("ChatService"),
	}
}

// Reply возвращает следующую реплику пациента на собранный промпт.
func (s *ChatService) Reply(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("пустой промпт чата")
	}

	reply, err := s.ai.ChatCompletion(ctx, chatSystemPrompt, prompt)
	if err != nil {
		s.logger.Error("LLM не вернул ответ пациента", zap.Error(err))
		return "", fmt.Errorf("%w: chat completion failed: %v", models.ErrUpstreamAI, err)
	}

	reply = strings.TrimSpace(reply)
	// Некоторые модели добавляют префикс роли, убираем его.
	reply = strings.TrimPrefix(reply, "Patient:")
	return strings.TrimSpace(reply), nil
}
