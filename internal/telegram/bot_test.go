package telegram

import (
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/aggregator"
	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/g2b/mock"
	"github.com/kitbuilder587/bid-search/internal/repository"
	"github.com/kitbuilder587/bid-search/internal/service"
)

// fakeSender запоминает отправленные тексты
type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	actions  int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.messages = append(f.messages, m)
	case tgbotapi.ChatActionConfig:
		f.actions++
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Text
	}
	return out
}

func (f *fakeSender) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type testBot struct {
	bot     *Bot
	sender  *fakeSender
	fetcher *mock.Client
	log     *repository.MockSearchLogRepository
}

func createTestBot(t *testing.T, f *mock.Client, cfg BotConfig) *testBot {
	t.Helper()

	agg := aggregator.New(aggregator.Deps{
		Fetcher: f,
		Logger:  zap.NewNop(),
		Now:     func() time.Time { return time.Date(2026, 1, 29, 12, 0, 0, 0, domain.KST) },
	})
	log := repository.NewMockSearchLogRepository()
	svc := service.NewSearchService(service.SearchServiceDeps{Aggregator: agg, Log: log, Logger: zap.NewNop()})

	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 100
	}
	s := &fakeSender{}
	bot := newBot(cfg, s, svc, zap.NewNop(), nil)
	t.Cleanup(bot.rateLimiter.Stop)

	return &testBot{bot: bot, sender: s, fetcher: f, log: log}
}

func createTestMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{
			ID:       userID,
			UserName: "testuser",
		},
		Chat: &tgbotapi.Chat{
			ID: userID,
		},
		Text: text,
	}
}

func TestNewBot_Defaults(t *testing.T) {
	tb := createTestBot(t, mock.New(), BotConfig{})

	if tb.bot.pageSize != 10 {
		t.Errorf("pageSize = %d, want 10", tb.bot.pageSize)
	}
	if tb.bot.rateLimiter.Limit() != 100 {
		t.Errorf("limit = %d, want 100", tb.bot.rateLimiter.Limit())
	}
}

func TestBot_SendUsesHTML(t *testing.T) {
	tb := createTestBot(t, mock.New(), BotConfig{})

	if err := tb.bot.Send(42, "<b>hi</b>"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	m := tb.sender.messages[0]
	if m.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("ParseMode = %q, want HTML", m.ParseMode)
	}
	if !m.DisableWebPagePreview {
		t.Error("web page preview should be disabled")
	}
	if m.ChatID != 42 {
		t.Errorf("ChatID = %d, want 42", m.ChatID)
	}
}

func TestBot_NilSender(t *testing.T) {
	bot := &Bot{}
	if err := bot.Send(1, "x"); err != nil {
		t.Errorf("Send() without api error = %v", err)
	}
	bot.SendTyping(1)
}

func TestBot_HandleUpdateRecoversPanic(t *testing.T) {
	tb := createTestBot(t, mock.New(), BotConfig{})
	tb.bot.search = nil // Search на nil-интерфейсе паникует

	tb.bot.handleUpdate(t.Context(), tgbotapi.Update{Message: createTestMessage(1, "부산")})
}

func TestClientKey(t *testing.T) {
	if got := clientKey(12345); got != "tg:12345" {
		t.Errorf("clientKey() = %q, want tg:12345", got)
	}
}
