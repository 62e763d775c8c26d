package dictation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"imitate-server/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRecognizer - распознаватель, управляемый тестом через канал событий.
type fakeRecognizer struct {
	events chan Event

	mu       sync.Mutex
	startErr error
	stops    int
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{events: make(chan Event, 16)}
}

func (f *fakeRecognizer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startErr
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRecognizer) Events() <-chan Event { return f.events }

func (f *fakeRecognizer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func TestBridge_SilenceResolvesAccumulatedText(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := NewBridge(rec, Config{InactivityTimeout: 30 * time.Millisecond}, zap.NewNop())

	rec.events <- Event{Type: EventResult, Text: "patient reports", Final: true}
	rec.events <- Event{Type: EventResult, Text: "chest pain", Final: true}
	rec.events <- Event{Type: EventResult, Text: "since yester", Final: false}

	text, err := bridge.Listen(context.Background())
	require.NoError(t, err)
	// Финальные фрагменты плюс последний промежуточный
	assert.Equal(t, "patient reports chest pain since yester", text)
	assert.GreaterOrEqual(t, rec.stopCount(), 1)
}

func TestBridge_PartialOnlyResult(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := NewBridge(rec, Config{InactivityTimeout: 20 * time.Millisecond}, zap.NewNop())

	rec.events <- Event{Type: EventResult, Text: "hel", Final: false}
	rec.events <- Event{Type: EventResult, Text: "hello wor", Final: false}

	text, err := bridge.Listen(context.Background())
	require.NoError(t, err)
	// Промежуточные фрагменты заменяют друг друга, а не накапливаются
	assert.Equal(t, "hello wor", text)
}

func TestBridge_AbortedResolvesPartial(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := NewBridge(rec, Config{InactivityTimeout: time.Second}, zap.NewNop())

	rec.events <- Event{Type: EventResult, Text: "take two tablets", Final: true}
	rec.events <- Event{Type: EventError, Err: errors.New("recognition aborted")}

	text, err := bridge.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "take two tablets", text)
}

func TestBridge_FatalErrorReturnsErrorWithPartial(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := NewBridge(rec, Config{InactivityTimeout: time.Second}, zap.NewNop())

	rec.events <- Event{Type: EventResult, Text: "some text", Final: true}
	rec.events <- Event{Type: EventError, Err: errors.New("audio device failure")}

	text, err := bridge.Listen(context.Background())
	require.Error(t, err)
	assert.Equal(t, "some text", text)
}

func TestBridge_ContextCancelResolvesPartial(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := NewBridge(rec, Config{InactivityTimeout: time.Minute}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var text string
	var err error
	go func() {
		text, err = bridge.Listen(ctx)
		close(done)
	}()

	rec.events <- Event{Type: EventResult, Text: "blood pressure", Final: true}
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen не завершился после отмены контекста")
	}
	require.NoError(t, err)
	assert.Equal(t, "blood pressure", text)
}

func TestBridge_EndEventFinishesSession(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := NewBridge(rec, Config{InactivityTimeout: time.Minute}, zap.NewNop())

	rec.events <- Event{Type: EventResult, Text: "follow up in two weeks", Final: true}
	rec.events <- Event{Type: EventEnd}

	text, err := bridge.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "follow up in two weeks", text)
}

func TestBridge_SingleSessionAtATime(t *testing.T) {
	rec := newFakeRecognizer()

	started := make(chan struct{})
	stopped := make(chan struct{})
	bridge := NewBridge(rec, Config{
		InactivityTimeout: time.Minute,
		OnStart:           func() { close(started) },
		OnStop:            func() { close(stopped) },
	}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		_, _ = bridge.Listen(context.Background())
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("сеанс не начался")
	}

	// Пока идет первый сеанс, второй отклоняется
	_, err := bridge.Listen(context.Background())
	assert.ErrorIs(t, err, models.ErrDictationBusy)

	rec.events <- Event{Type: EventEnd}
	<-done

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("индикатор записи не выключен")
	}
	assert.False(t, bridge.Busy())
}

func TestBridge_StartErrorPropagates(t *testing.T) {
	rec := newFakeRecognizer()
	rec.startErr = errors.New("no microphone")
	bridge := NewBridge(rec, Config{}, zap.NewNop())

	_, err := bridge.Listen(context.Background())
	assert.Error(t, err)
	assert.False(t, bridge.Busy())
}
