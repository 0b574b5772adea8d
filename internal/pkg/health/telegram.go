package health

import (
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
)

// sender is the part of tgbotapi.BotAPI the alerter uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter forwards observations to the next reporter and messages a
// chat when a source fails threshold times in a row, and again when it
// recovers.
type TelegramAlerter struct {
	next      Reporter
	bot       sender
	chatID    int64
	threshold int

	mu       sync.Mutex
	failures map[string]int
	alerted  map[string]bool

	queue chan string
	wg    sync.WaitGroup
}

// NewTelegramAlerter connects to the bot API and starts the sender.
func NewTelegramAlerter(next Reporter, cfg config.TelegramConfig) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false
	slog.Info("Telegram alerter initialized", "bot", bot.Self.UserName, "chat_id", cfg.ChatID)
	return newTelegramAlerter(next, bot, cfg.ChatID, cfg.FailureThreshold), nil
}

func newTelegramAlerter(next Reporter, bot sender, chatID int64, threshold int) *TelegramAlerter {
	if threshold <= 0 {
		threshold = 1
	}
	a := &TelegramAlerter{
		next:      next,
		bot:       bot,
		chatID:    chatID,
		threshold: threshold,
		failures:  make(map[string]int),
		alerted:   make(map[string]bool),
		queue:     make(chan string, 32),
	}
	a.wg.Add(1)
	go a.messageSender()
	return a
}

func (a *TelegramAlerter) RecordObservation(source string, success bool, err error) {
	if a.next != nil {
		a.next.RecordObservation(source, success, err)
	}

	a.mu.Lock()
	var text string
	if success {
		if a.alerted[source] {
			text = fmt.Sprintf("✅ %s recovered after %d failed refreshes", source, a.failures[source])
		}
		delete(a.failures, source)
		delete(a.alerted, source)
	} else {
		a.failures[source]++
		if a.failures[source] >= a.threshold && !a.alerted[source] {
			a.alerted[source] = true
			text = fmt.Sprintf("⚠️ %s failed %d refreshes in a row: %v", source, a.failures[source], err)
		}
	}
	a.mu.Unlock()

	if text == "" {
		return
	}
	select {
	case a.queue <- text:
	default:
		slog.Warn("Telegram queue full, dropping alert", "source", source)
	}
}

func (a *TelegramAlerter) messageSender() {
	defer a.wg.Done()
	for text := range a.queue {
		if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, text)); err != nil {
			slog.Error("Failed to send telegram alert", "error", err)
		}
	}
}

// Close flushes queued alerts. RecordObservation must not be called after
// Close.
func (a *TelegramAlerter) Close() error {
	close(a.queue)
	a.wg.Wait()
	return nil
}
