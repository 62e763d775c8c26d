package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"imitate-server/shared/models"

	"go.uber.org/zap"
)

// Client предоставляет методы для взаимодействия с oracle API
// (случаи, чат, оценка, хранилище записей). Внутренности API для
// session-service непрозрачны: это просто JSON поверх HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientConfig содержит настройки для клиента oracle API.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient создает новый клиент oracle API.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("OracleClient"),
	}
}

// randomPatientResponse - обертка ответа /patients/random.
// Тело случая декодируется отдельно по именованным полям.
type randomPatientResponse struct {
	Patient json.RawMessage `json:"patient"`
}

// RandomPatient запрашивает новый случай у оракула.
// Любая транспортная ошибка, не-2xx статус или некорректная форма
// ответа возвращаются как ошибка; частичных результатов не бывает.
func (c *Client) RandomPatient(ctx context.Context, bearer string) (*models.Patient, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/patients/random", nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе случая: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("оракул случаев вернул статус %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении ответа: %w", err)
	}

	var wrapper randomPatientResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPatient, err)
	}
	if len(wrapper.Patient) == 0 {
		return nil, fmt.Errorf("%w: в ответе нет поля patient", models.ErrMalformedPatient)
	}

	patient, err := models.DecodePatient(wrapper.Patient)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Случай загружен", zap.String("patientID", patient.ID.String()))
	return patient, nil
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat отправляет накопленный контекст чат-оракулу и возвращает реплику
// симулированного пациента.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	if err := c.postJSON(ctx, "/chat", "", chatRequest{Prompt: prompt}, &out); err != nil {
		return "", fmt.Errorf("ошибка чат-оракула: %w", err)
	}
	if out.Reply == "" {
		return "", fmt.Errorf("чат-оракул вернул пустой ответ")
	}
	return out.Reply, nil
}

// Evaluate отправляет собранную сессию на оценку.
func (c *Client) Evaluate(ctx context.Context, evalReq models.EvaluationRequest) (*models.EvaluationResult, error) {
	var out models.EvaluationResult
	if err := c.postJSON(ctx, "/evaluate", "", evalReq, &out); err != nil {
		return nil, fmt.Errorf("ошибка оракула оценки: %w", err)
	}
	if out.Evaluation == "" {
		return nil, fmt.Errorf("оракул оценки вернул пустой разбор")
	}
	return &out, nil
}

type addScoreRequest struct {
	Score int `json:"score"`
}

// AddScore записывает набранный балл в профиль студента. Вызов best-effort:
// ошибку логирует и обрабатывает вызывающая сторона.
func (c *Client) AddScore(ctx context.Context, bearer string, score int) error {
	return c.postJSON(ctx, "/addScore", bearer, addScoreRequest{Score: score}, nil)
}

// AddMatch сохраняет полную запись сыгранного случая.
func (c *Client) AddMatch(ctx context.Context, bearer string, record models.MatchRecord) error {
	return c.postJSON(ctx, "/addMatch", bearer, record, nil)
}

// postJSON выполняет POST с JSON-телом и опциональным bearer-токеном,
// декодируя 2xx ответ в out (если out != nil).
func (c *Client) postJSON(ctx context.Context, path, bearer string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("ошибка при создании запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка при выполнении запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp models.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Message != "" {
			return fmt.Errorf("oracle API вернул статус %d: %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("oracle API вернул статус %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка при разборе ответа: %w", err)
	}
	return nil
}
