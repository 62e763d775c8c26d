package dictation

import (
	"context"
	"errors"
	"sync"
	"time"

	"imitate-server/shared/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время ожидания следующего кадра от клиента.
	readWait = 60 * time.Second
	// Максимальный размер кадра распознавания.
	maxFrameSize = 16 * 1024
)

// wsFrame - кадр протокола диктовки. Клиент транслирует события своего
// распознавателя речи как JSON-сообщения.
type wsFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Message string `json:"message,omitempty"`
}

// WSRecognizer - распознаватель, питаемый WebSocket-соединением клиента.
// Живет ровно один сеанс: после EventEnd или ошибки соединение закрывается.
type WSRecognizer struct {
	conn   *websocket.Conn
	events chan Event
	logger *zap.Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWSRecognizer оборачивает установленное соединение.
func NewWSRecognizer(conn *websocket.Conn, logger *zap.Logger) *WSRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSRecognizer{
		conn:    conn,
		events:  make(chan Event, 16),
		logger:  logger.Named("WSRecognizer"),
		stopped: make(chan struct{}),
	}
}

// Start запускает цикл чтения кадров. Сигнал начала записи отправляется
// клиенту сразу, чтобы тот включил индикатор.
func (r *WSRecognizer) Start(ctx context.Context) error {
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := r.conn.WriteJSON(wsFrame{Type: "listening"}); err != nil {
		return err
	}

	go r.readPump(ctx)
	return nil
}

// Stop просит клиента остановить распознавание и закрывает чтение.
func (r *WSRecognizer) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopped)
		_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = r.conn.WriteJSON(wsFrame{Type: "stop"})
	})
}

// Events возвращает канал событий распознавания.
func (r *WSRecognizer) Events() <-chan Event {
	return r.events
}

// readPump откачивает кадры распознавания из соединения в канал событий.
func (r *WSRecognizer) readPump(ctx context.Context) {
	defer close(r.events)

	r.conn.SetReadLimit(maxFrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopped:
			// После stop дочитываем хвост с коротким дедлайном.
			_ = r.conn.SetReadDeadline(time.Now().Add(writeWait))
		default:
			_ = r.conn.SetReadDeadline(time.Now().Add(readWait))
		}

		var frame wsFrame
		if err := r.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Warn("Ошибка чтения WebSocket", zap.Error(err))
			}
			return
		}

		switch frame.Type {
		case "result":
			r.emit(ctx, Event{Type: EventResult, Text: frame.Text, Final: frame.Final})
		case "end":
			r.emit(ctx, Event{Type: EventEnd})
			return
		case "error":
			r.emit(ctx, Event{Type: EventError, Err: classifyError(frame.Message)})
			return
		default:
			r.logger.Warn("Неизвестный тип кадра диктовки", zap.String("type", frame.Type))
		}
	}
}

// classifyError переводит коды ошибок браузерного распознавателя в доменные.
// "not-allowed" и "service-not-allowed" - это и есть недоступная диктовка.
func classifyError(message string) error {
	switch message {
	case "not-allowed", "service-not-allowed", "unsupported":
		return models.ErrDictationUnsupported
	case "":
		return errors.New("recognition error")
	default:
		return errors.New(message)
	}
}

func (r *WSRecognizer) emit(ctx context.Context, ev Event) {
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}

// WriteResult отправляет клиенту итоговый текст диктовки.
func (r *WSRecognizer) WriteResult(text string) error {
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteJSON(wsFrame{Type: "transcript", Text: text})
}

// WriteError отправляет клиенту ошибку диктовки.
func (r *WSRecognizer) WriteError(message string) error {
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteJSON(wsFrame{Type: "error", Message: message})
}

var _ Recognizer = (*WSRecognizer)(nil)
