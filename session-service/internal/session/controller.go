package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"imitate-server/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Oracle описывает внешние сервисы случаев, чата и оценки.
// Session controller никогда не мутирует их состояние - только
// получает значения и применяет их сам.
type Oracle interface {
	RandomPatient(ctx context.Context, bearer string) (*models.Patient, error)
	Chat(ctx context.Context, prompt string) (string, error)
	Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.EvaluationResult, error)
}

// RecordStore описывает best-effort хранилище счетов и истории.
type RecordStore interface {
	AddScore(ctx context.Context, bearer string, score int) error
	AddMatch(ctx context.Context, bearer string, record models.MatchRecord) error
}

// SubmitReason различает путь явной отправки и путь таймаута.
// Оба сходятся в одной процедуре отправки.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "manual"
	SubmitReasonTimeout SubmitReason = "timeout"
)

const (
	welcomeTurnContent = "Patient loaded. How can I assist you with this case?"
	readyTurnContent   = "The patient is ready. You may begin the checkup."
)

// Config содержит параметры одной практической сессии.
type Config struct {
	// Полная длительность сессии в целых секундах.
	SessionSeconds int
	// Период декремента таймера; по умолчанию секунда.
	TickInterval time.Duration
	// Таймаут фоновых вызовов (отправка по таймауту, запись результатов).
	CallTimeout time.Duration
}

// Controller владеет жизненным циклом одной практической сессии:
// no-case -> intro -> active -> evaluating -> results, с единственным
// замыкающим ребром results -> no-case при запросе нового случая.
// Все состояние сессии принадлежит контроллеру и защищено mu; таймер и
// загрузчик - stateless коллабораторы, возвращающие значения.
type Controller struct {
	mu sync.Mutex

	id     uuid.UUID
	owner  uuid.UUID
	bearer string

	state      models.SessionState
	patient    *models.Patient
	transcript []models.Turn
	nextTurnID int64

	diagnosisDraft string
	aftercareDraft string

	timer  *Timer
	result *models.EvaluationResult

	// Последняя ошибка, видимая пользователю. Очищается при успешном
	// переходе; молчаливых вечных спиннеров быть не должно.
	lastErr string

	loading  bool
	chatBusy bool

	oracle  Oracle
	records RecordStore
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewController создает контроллер сессии в состоянии no-case.
func NewController(id, owner uuid.UUID, bearer string, oracle Oracle, records RecordStore, cfg Config, logger *zap.Logger) *Controller {
	if cfg.SessionSeconds <= 0 {
		cfg.SessionSeconds = 600
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		id:      id,
		owner:   owner,
		bearer:  bearer,
		state:   models.StateNoCase,
		oracle:  oracle,
		records: records,
		cfg:     cfg,
		logger:  logger.Named("SessionController").With(zap.String("sessionID", id.String())),
		now:     time.Now,
	}
}

// ID возвращает идентификатор сессии.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// Owner возвращает идентификатор пользователя, создавшего сессию.
func (c *Controller) Owner() uuid.UUID {
	return c.owner
}

// LoadCase загружает новый случай. Допустим только из no-case или results;
// из results сессия сначала возвращается в no-case, затем по успешному
// ответу загрузчика переходит в intro. При ошибке загрузки прежние
// случай, транскрипт и черновики остаются нетронутыми.
func (c *Controller) LoadCase(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return models.ErrLoadInProgress
	}
	if c.state != models.StateNoCase && c.state != models.StateResults {
		c.mu.Unlock()
		return models.ErrCaseAlreadyActive
	}
	if c.state == models.StateResults {
		c.state = models.StateNoCase
	}
	c.loading = true
	c.mu.Unlock()

	patient, err := c.oracle.RandomPatient(ctx, c.bearer)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		c.lastErr = fmt.Sprintf("не удалось загрузить случай: %v", err)
		c.logger.Error("Загрузка случая не удалась", zap.Error(err))
		return err
	}

	c.stopTimerLocked()
	c.patient = patient
	c.transcript = nil
	c.nextTurnID = 0
	c.appendTurnLocked(models.TurnAuthorPatient, welcomeTurnContent)
	c.diagnosisDraft = ""
	c.aftercareDraft = ""
	c.result = nil
	c.lastErr = ""
	c.state = models.StateIntro

	c.logger.Info("Случай загружен", zap.String("patientID", patient.ID.String()))
	return nil
}

// BeginCheckup переводит сессию из intro в active: транскрипт сбрасывается
// до единственной реплики готовности, таймер взводится на полную
// длительность сессии.
func (c *Controller) BeginCheckup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != models.StateIntro {
		return models.ErrSessionNotInIntro
	}

	c.transcript = nil
	c.appendTurnLocked(models.TurnAuthorPatient, readyTurnContent)

	// Старый таймер, если был, уже остановлен при загрузке случая;
	// здесь всегда создается свежий экземпляр.
	c.timer = NewTimer(c.cfg.SessionSeconds, c.cfg.TickInterval, nil, func() {
		// Отдельная горутина: колбэк таймера не должен брать мьютекс
		// контроллера, пока таймер держит свой.
		go c.submitOnTimeout()
	})
	if err := c.timer.Start(); err != nil {
		c.timer = nil
		return fmt.Errorf("не удалось запустить таймер сессии: %w", err)
	}

	c.state = models.StateActive
	c.lastErr = ""
	c.logger.Info("Прием начат", zap.Int("seconds", c.cfg.SessionSeconds))
	return nil
}

// SendMessage добавляет реплику студента, запрашивает ответ чат-оракула
// и добавляет ответную реплику пациента. Одновременно допускается только
// один незавершенный обмен: на время ожидания ввод заблокирован.
func (c *Controller) SendMessage(ctx context.Context, text string) (*models.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.ErrBadRequest
	}

	c.mu.Lock()
	if c.state != models.StateActive {
		c.mu.Unlock()
		return nil, models.ErrSessionNotActive
	}
	if c.chatBusy {
		c.mu.Unlock()
		return nil, models.ErrChatInProgress
	}
	c.chatBusy = true
	c.appendTurnLocked(models.TurnAuthorUser, text)
	prompt := c.buildChatPromptLocked()
	c.mu.Unlock()

	reply, err := c.oracle.Chat(ctx, prompt)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatBusy = false

	if err != nil {
		c.lastErr = fmt.Sprintf("ответ пациента не получен: %v", err)
		c.logger.Error("Чат-оракул вернул ошибку", zap.Error(err))
		return nil, err
	}

	// Ответ мог прийти уже после таймаута сессии: транскрипт после
	// отправки на оценку заморожен, поздний ответ отбрасывается.
	if c.state != models.StateActive {
		c.logger.Warn("Ответ чат-оракула пришел вне active, реплика отброшена",
			zap.String("state", string(c.state)))
		return nil, models.ErrSessionNotActive
	}

	turn := c.appendTurnLocked(models.TurnAuthorPatient, reply)
	c.lastErr = ""
	return &turn, nil
}

// SetDrafts обновляет черновики диагноза и плана наблюдения.
// Допустимо в intro и active; после отправки на оценку черновики заморожены.
func (c *Controller) SetDrafts(diagnosis, aftercare string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != models.StateIntro && c.state != models.StateActive {
		return models.ErrSessionNotActive
	}
	c.diagnosisDraft = diagnosis
	c.aftercareDraft = aftercare
	return nil
}

// SubmitEvaluation отправляет случай на оценку. Явная отправка и отправка
// по таймауту сходятся здесь; защита "уже отправляется" делает пару
// конкурирующих вызовов идемпотентной - оракул оценки вызывается ровно
// один раз. При таймауте отправляется то, что есть в черновиках, даже
// пустые строки.
func (c *Controller) SubmitEvaluation(ctx context.Context, reason SubmitReason) (*models.EvaluationResult, error) {
	c.mu.Lock()
	if c.state == models.StateEvaluating {
		c.mu.Unlock()
		return nil, models.ErrSubmitInProgress
	}
	if c.state != models.StateActive {
		c.mu.Unlock()
		return nil, models.ErrSessionNotActive
	}
	if c.patient == nil {
		c.mu.Unlock()
		return nil, models.ErrCaseNotLoaded
	}

	timeLeft := 0
	if c.timer != nil {
		timeLeft = c.timer.Remaining()
	}
	c.stopTimerLocked()

	evalReq := models.EvaluationRequest{
		PatientData:        *c.patient,
		ChatHistory:        c.formatTranscriptLocked(),
		SubmittedDiagnosis: c.diagnosisDraft,
		SubmittedAftercare: c.aftercareDraft,
		TimeLeft:           timeLeft,
	}
	c.state = models.StateEvaluating
	c.logger.Info("Отправка на оценку",
		zap.String("reason", string(reason)),
		zap.Int("timeLeft", timeLeft))
	c.mu.Unlock()

	result, err := c.oracle.Evaluate(ctx, evalReq)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		// Сессия не должна зависнуть в evaluating: возвращаемся в active
		// с видимой ошибкой. Отсчет при ручной отправке возобновляется
		// с захваченного остатка; после таймаута возобновлять нечего.
		c.state = models.StateActive
		c.lastErr = fmt.Sprintf("оценка не удалась: %v", err)
		if reason == SubmitReasonManual && timeLeft > 0 {
			c.timer = NewTimer(timeLeft, c.cfg.TickInterval, nil, func() {
				go c.submitOnTimeout()
			})
			if startErr := c.timer.Start(); startErr != nil {
				c.timer = nil
			}
		}
		c.logger.Error("Оракул оценки вернул ошибку", zap.Error(err))
		return nil, err
	}

	c.result = result
	c.state = models.StateResults
	c.lastErr = ""
	c.logger.Info("Оценка получена", zap.Int("score", result.Score))

	// Запись счета и истории best-effort: неудача логируется и
	// проглатывается, переход в results она не задерживает и не меняет.
	record := models.MatchRecord{
		PatientInfo:        *c.patient,
		SubmittedDiagnosis: evalReq.SubmittedDiagnosis,
		SubmittedAftercare: evalReq.SubmittedAftercare,
		Score:              result.Score,
		Feedback:           result.Evaluation,
		Time:               timeLeft,
	}
	go c.persistRecords(record)

	return result, nil
}

// StartNewCase замыкает цикл results -> no-case -> intro.
func (c *Controller) StartNewCase(ctx context.Context) error {
	c.mu.Lock()
	if c.state != models.StateResults {
		c.mu.Unlock()
		return models.ErrCaseAlreadyActive
	}
	c.mu.Unlock()
	return c.LoadCase(ctx)
}

// Close останавливает таймер сессии. Вызывается при удалении сессии
// из реестра.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

// submitOnTimeout - путь отправки по истечении времени. Если студент уже
// начал явную отправку, защита по состоянию evaluating не даст отправить
// дважды.
func (c *Controller) submitOnTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	defer cancel()

	if _, err := c.SubmitEvaluation(ctx, SubmitReasonTimeout); err != nil {
		c.logger.Warn("Отправка по таймауту не выполнена", zap.Error(err))
	}
}

// persistRecords выполняет отложенную запись счета и полной записи матча.
func (c *Controller) persistRecords(record models.MatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	defer cancel()

	if err := c.records.AddScore(ctx, c.bearer, record.Score); err != nil {
		c.logger.Warn("Не удалось записать счет", zap.Error(err))
	}
	if err := c.records.AddMatch(ctx, c.bearer, record); err != nil {
		c.logger.Warn("Не удалось записать историю матча", zap.Error(err))
	}
}

// Snapshot - иммутабельный срез состояния сессии для HTTP-слоя.
// Эталонный диагноз редактируется из случая до перехода в results.
type Snapshot struct {
	ID             uuid.UUID                `json:"id"`
	State          models.SessionState      `json:"state"`
	Patient        *models.Patient          `json:"patient,omitempty"`
	Transcript     []models.Turn            `json:"transcript"`
	DiagnosisDraft string                   `json:"diagnosis_draft"`
	AftercareDraft string                   `json:"aftercare_draft"`
	TimeLeft       int                      `json:"time_left"`
	Result         *models.EvaluationResult `json:"result,omitempty"`
	LastError      string                   `json:"last_error,omitempty"`
}

// Snapshot возвращает текущее состояние сессии.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ID:             c.id,
		State:          c.state,
		DiagnosisDraft: c.diagnosisDraft,
		AftercareDraft: c.aftercareDraft,
		LastError:      c.lastErr,
	}
	if c.timer != nil {
		snap.TimeLeft = c.timer.Remaining()
	}
	if c.patient != nil {
		p := *c.patient
		if c.state != models.StateResults {
			p = p.Redacted()
		}
		snap.Patient = &p
	}
	snap.Transcript = make([]models.Turn, len(c.transcript))
	copy(snap.Transcript, c.transcript)
	if c.state == models.StateResults {
		snap.Result = c.result
	}
	return snap
}

// appendTurnLocked добавляет реплику с монотонным идентификатором.
// Вызывается только под c.mu.
func (c *Controller) appendTurnLocked(author models.TurnAuthor, content string) models.Turn {
	c.nextTurnID++
	turn := models.Turn{
		ID:        c.nextTurnID,
		Author:    author,
		Content:   content,
		Timestamp: c.now(),
	}
	c.transcript = append(c.transcript, turn)
	return turn
}

// stopTimerLocked снимает текущую регистрацию таймера, если она есть.
func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// buildChatPromptLocked собирает промпт чат-оракула: инструкция роли,
// дословное описание случая и весь упорядоченный транскрипт.
func (c *Controller) buildChatPromptLocked() string {
	var b strings.Builder
	b.WriteString("You are role-playing as a simulated patient in a medical training session. ")
	b.WriteString("Stay in character, answer as the patient would, and never reveal the diagnosis.\n\n")
	b.WriteString(c.patient.ContextString())
	b.WriteString("\n\nConversation so far:\n")
	b.WriteString(c.formatTranscriptLocked())
	b.WriteString("\nPatient:")
	return b.String()
}

// formatTranscriptLocked превращает транскрипт в текст для оракулов.
// Порядок вставки сохраняется и семантически значим.
func (c *Controller) formatTranscriptLocked() string {
	lines := make([]string, 0, len(c.transcript))
	for _, turn := range c.transcript {
		speaker := "Patient"
		if turn.Author == models.TurnAuthorUser {
			speaker = "Doctor"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, turn.Content))
	}
	return strings.Join(lines, "\n")
}
