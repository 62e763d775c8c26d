package dictation

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"imitate-server/shared/models"

	"go.uber.org/zap"
)

// EventType - тип события распознавания.
type EventType string

const (
	// EventResult - промежуточный или финальный фрагмент текста.
	EventResult EventType = "result"
	// EventEnd - распознаватель завершил поток.
	EventEnd EventType = "end"
	// EventError - ошибка распознавания. Ошибка "aborted" не фатальна:
	// накопленный текст все равно возвращается.
	EventError EventType = "error"
)

// Event - единица потока распознавания.
type Event struct {
	Type  EventType
	Text  string
	Final bool
	Err   error
}

// Recognizer - источник событий распознавания речи. Stop обязан быть
// идемпотентным; после Stop канал Events рано или поздно закрывается
// или выдает EventEnd.
type Recognizer interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan Event
}

// Config содержит параметры моста диктовки.
type Config struct {
	// Пауза без новых фрагментов, после которой диктовка завершается
	// и накопленный текст отдается как есть.
	InactivityTimeout time.Duration
	// Необязательные синхронные колбэки индикатора записи.
	OnStart func()
	OnStop  func()
}

// Bridge превращает событийный распознаватель в ожидаемую операцию:
// один вызов Listen - один сеанс диктовки, завершающийся по тишине,
// по отмене контекста или по ошибке распознавателя. В каждый момент
// допускается не больше одного сеанса.
type Bridge struct {
	recognizer Recognizer
	cfg        Config
	busy       atomic.Bool
	logger     *zap.Logger
}

// NewBridge создает мост над распознавателем.
func NewBridge(recognizer Recognizer, cfg Config, logger *zap.Logger) *Bridge {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logger.Named("DictationBridge"),
	}
}

// Listen запускает сеанс диктовки и блокируется до его завершения.
// Возвращает собранный текст; частичный результат возвращается и при
// тишине, и при отмене контекста, и при прерывании распознавателя.
func (b *Bridge) Listen(ctx context.Context) (string, error) {
	if !b.busy.CompareAndSwap(false, true) {
		return "", models.ErrDictationBusy
	}
	defer b.busy.Store(false)

	if b.cfg.OnStart != nil {
		b.cfg.OnStart()
	}
	defer func() {
		if b.cfg.OnStop != nil {
			b.cfg.OnStop()
		}
	}()

	if err := b.recognizer.Start(ctx); err != nil {
		return "", err
	}

	var (
		finals      []string
		lastPartial string
	)
	assemble := func() string {
		text := strings.Join(finals, " ")
		if lastPartial != "" {
			if text != "" {
				text += " "
			}
			text += lastPartial
		}
		return strings.TrimSpace(text)
	}

	idle := time.NewTimer(b.cfg.InactivityTimeout)
	defer idle.Stop()

	events := b.recognizer.Events()
	for {
		select {
		case <-ctx.Done():
			b.recognizer.Stop()
			b.logger.Debug("Диктовка прервана контекстом")
			return assemble(), nil

		case <-idle.C:
			// Тишина: останавливаем распознаватель и отдаем то, что есть.
			b.recognizer.Stop()
			b.drain(events)
			b.logger.Debug("Диктовка завершена по тишине")
			return assemble(), nil

		case ev, ok := <-events:
			if !ok {
				return assemble(), nil
			}
			switch ev.Type {
			case EventResult:
				if ev.Final {
					if ev.Text != "" {
						finals = append(finals, ev.Text)
					}
					lastPartial = ""
				} else {
					lastPartial = ev.Text
				}
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(b.cfg.InactivityTimeout)

			case EventEnd:
				return assemble(), nil

			case EventError:
				if isAborted(ev.Err) {
					b.logger.Debug("Распознаватель прерван, частичный текст сохранен")
					return assemble(), nil
				}
				b.recognizer.Stop()
				b.logger.Error("Ошибка распознавания", zap.Error(ev.Err))
				return assemble(), ev.Err
			}
		}
	}
}

// Busy сообщает, идет ли сейчас сеанс диктовки.
func (b *Bridge) Busy() bool {
	return b.busy.Load()
}

// drain дочитывает события после Stop, чтобы не завис источник.
func (b *Bridge) drain(events <-chan Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok || ev.Type == EventEnd {
				return
			}
		case <-time.After(time.Second):
			return
		}
	}
}

func isAborted(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "aborted")
}
