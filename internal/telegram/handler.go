package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/service"
)

const historyLimit = 10

type Handler struct {
	bot *Bot
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	h.bot.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	cmd := ParseCommand(msg.Text)
	switch cmd.Kind {
	case CommandStart, CommandHelp:
		h.bot.Send(msg.Chat.ID, helpText)
	case CommandKeyword, CommandInstitution:
		h.handleSearch(ctx, msg, cmd)
	case CommandDetail:
		h.handleDetail(ctx, msg, cmd)
	case CommandHistory:
		h.handleHistory(ctx, msg)
	default:
		h.bot.Send(msg.Chat.ID, "알 수 없는 명령입니다. /help 를 입력해 주세요.")
	}
}

const helpText = `<b>나라장터 입찰공고 검색</b>

/bid 키워드 - 공고명으로 검색
/instt 기관명 - 공고·수요기관으로 검색
/detail 공고번호 [차수] - 공고 상세 조회
/history - 내 최근 검색
/help - 도움말

명령 없이 보낸 메시지는 공고명 검색으로 처리됩니다.
물품·용역·공사 세 분야를 최근 30일 기준으로 함께 조회합니다.

<b>예시:</b>
• /bid 부산 준설
• /instt 부산광역시
• /detail R26BK01234567-000`

func (h *Handler) handleSearch(ctx context.Context, msg *tgbotapi.Message, cmd Command) {
	if cmd.Arg == "" {
		if cmd.Kind == CommandInstitution {
			h.bot.Send(msg.Chat.ID, "기관명을 입력해 주세요: /instt 부산광역시")
		} else {
			h.bot.Send(msg.Chat.ID, "검색어를 입력해 주세요: /bid 부산")
		}
		return
	}

	if !h.allow(msg) {
		return
	}
	h.bot.SendTyping(msg.Chat.ID)

	req := domain.SearchRequest{PageSize: h.bot.pageSize}
	title := fmt.Sprintf("\"%s\" 검색 결과", cmd.Arg)
	if cmd.Kind == CommandInstitution {
		req.InstitutionName = cmd.Arg
		title = fmt.Sprintf("기관 \"%s\" 검색 결과", cmd.Arg)
	} else {
		req.Keyword = cmd.Arg
	}

	res, err := h.bot.search.Search(ctx, req, h.origin(msg))
	if err != nil {
		h.bot.logger.Warn("telegram search failed",
			zap.Error(err),
			zap.Int64("user_id", msg.From.ID),
		)
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	h.sendLong(msg.Chat.ID, FormatSearchResult(title, res))
}

func (h *Handler) handleDetail(ctx context.Context, msg *tgbotapi.Message, cmd Command) {
	if cmd.Arg == "" {
		h.bot.Send(msg.Chat.ID, "공고번호를 입력해 주세요: /detail R26BK01234567-000")
		return
	}

	if !h.allow(msg) {
		return
	}
	h.bot.SendTyping(msg.Chat.ID)

	bid, err := h.bot.search.Lookup(ctx, cmd.Arg, cmd.Order, h.origin(msg))
	if err != nil {
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	h.sendLong(msg.Chat.ID, FormatBid(*bid))
}

func (h *Handler) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	records, err := h.bot.search.History(ctx, clientKey(msg.From.ID), historyLimit)
	if err != nil {
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}
	h.bot.Send(msg.Chat.ID, FormatHistory(records))
}

func (h *Handler) allow(msg *tgbotapi.Message) bool {
	key := clientKey(msg.From.ID)
	if h.bot.rateLimiter.Allow(key) {
		return true
	}

	h.bot.logger.Warn("rate limit exceeded",
		zap.Int64("user_id", msg.From.ID),
		zap.Time("reset_at", h.bot.rateLimiter.ResetTime(key)),
	)
	h.bot.RecordRateLimitHit()
	h.bot.Send(msg.Chat.ID, "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요.")
	return false
}

func (h *Handler) sendLong(chatID int64, text string) {
	for _, part := range SplitMessage(text, MaxMessageLength) {
		if err := h.bot.Send(chatID, part); err != nil {
			h.bot.logger.Error("failed to send message", zap.Error(err))
		}
	}
}

func (h *Handler) origin(msg *tgbotapi.Message) service.Origin {
	return service.Origin{Channel: service.ChannelTelegram, ClientID: clientKey(msg.From.ID)}
}

func mapErrorToMessage(err error) string {
	var tf *domain.TotalFailureError

	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return "검색 조건이 올바르지 않습니다."
	case errors.Is(err, domain.ErrNotConfigured):
		return "검색 API가 설정되지 않았습니다. 관리자에게 문의해 주세요."
	case errors.Is(err, domain.ErrNotFound):
		return "해당 공고를 찾을 수 없습니다."
	case errors.Is(err, domain.ErrHistoryDisabled):
		return "검색 기록 기능이 꺼져 있습니다."
	case errors.As(err, &tf) && tf.AllOfKind(domain.FailureTimeout):
		return "나라장터 응답이 지연되고 있습니다. 잠시 후 다시 시도해 주세요."
	case errors.As(err, &tf):
		return "나라장터 조회에 실패했습니다. 잠시 후 다시 시도해 주세요."
	default:
		return "오류가 발생했습니다. 잠시 후 다시 시도해 주세요."
	}
}
