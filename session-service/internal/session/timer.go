package session

import (
	"errors"
	"sync"
	"time"
)

// Timer - обратный отсчет сессии с посекундным тиком и уведомлением
// об истечении. Экземпляр одноразовый: перезапуск отсчета выполняется
// остановкой старого таймера и созданием нового, так что активная
// регистрация интервала в каждый момент ровно одна.
//
// onTick вызывается с новым значением после каждого декремента,
// оставляющего remaining > 0. onTimeout вызывается ровно один раз при
// переходе remaining в 0, после чего отсчет замирает на нуле.
type Timer struct {
	mu        sync.Mutex
	remaining int
	started   bool
	stopped   bool
	stopCh    chan struct{}

	interval  time.Duration
	onTick    func(remaining int)
	onTimeout func()
}

// NewTimer создает таймер на seconds целых секунд. interval задает период
// декремента (секунда в проде, миллисекунды в тестах).
func NewTimer(seconds int, interval time.Duration, onTick func(int), onTimeout func()) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{
		remaining: seconds,
		interval:  interval,
		onTick:    onTick,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
	}
}

// Start запускает отсчет. Повторный запуск того же экземпляра - ошибка.
func (t *Timer) Start() error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("timer already started")
	}
	if t.remaining <= 0 {
		t.mu.Unlock()
		return errors.New("timer duration must be positive")
	}
	t.started = true
	t.mu.Unlock()

	go t.run()
	return nil
}

func (t *Timer) run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			// Колбэки вызываются под мьютексом: после возврата Stop
			// ни onTick, ни onTimeout уже не срабатывают.
			t.mu.Lock()
			if t.stopped || t.remaining <= 0 {
				t.mu.Unlock()
				return
			}
			t.remaining--
			remaining := t.remaining
			if remaining > 0 {
				if t.onTick != nil {
					t.onTick(remaining)
				}
				t.mu.Unlock()
				continue
			}
			if t.onTimeout != nil {
				t.onTimeout()
			}
			t.mu.Unlock()
			return
		}
	}
}

// Stop останавливает отсчет и замораживает оставшееся время.
// Идемпотентен; безопасен из любого состояния.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stopCh)
}

// Remaining возвращает оставшиеся целые секунды.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}
