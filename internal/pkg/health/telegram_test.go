package health

import (
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	for i, m := range b.sent {
		out[i] = m.Text
	}
	return out
}

type countingReporter struct {
	calls int
}

func (r *countingReporter) RecordObservation(string, bool, error) { r.calls++ }

func TestTelegramAlerterThresholdAndRecovery(t *testing.T) {
	bot := &fakeBot{}
	next := &countingReporter{}
	a := newTelegramAlerter(next, bot, 42, 3)

	boom := errors.New("navigation timeout")
	a.RecordObservation("TT Cup", false, boom)
	a.RecordObservation("TT Cup", false, boom)
	a.RecordObservation("TT Elite Series", false, boom)
	a.RecordObservation("TT Cup", false, boom)
	a.RecordObservation("TT Cup", false, boom)
	a.RecordObservation("TT Cup", true, nil)
	a.RecordObservation("TT Cup", true, nil)
	require.NoError(t, a.Close())

	texts := bot.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "TT Cup failed 3 refreshes in a row")
	assert.Contains(t, texts[0], "navigation timeout")
	assert.Contains(t, texts[1], "TT Cup recovered after 4 failed refreshes")
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, 7, next.calls)
}

func TestTelegramAlerterResetsOnSuccess(t *testing.T) {
	bot := &fakeBot{}
	a := newTelegramAlerter(nil, bot, 1, 2)

	a.RecordObservation("src", false, errors.New("x"))
	a.RecordObservation("src", true, nil)
	a.RecordObservation("src", false, errors.New("x"))
	require.NoError(t, a.Close())

	assert.Empty(t, bot.texts())
}
