package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/auth"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/storage"
)

type Config struct {
	StorageKey    string        // prefix of the per-chat session key
	UpdateTimeout int           // long polling timeout, seconds
	RevokeTimeout time.Duration // budget for server-side logout
	TouchInterval time.Duration // minimum gap between last-use updates of a stored session
}

type Handler struct {
	bot              Bot
	logger           *zap.Logger
	backend          Backend
	sessions         auth.KeyedStore
	cfg              Config
	chats            *storage.ChatStorage[*chat]
	questionMessages *storage.QuestionMessageStorage
}

func NewHandler(
	bot Bot,
	logger *zap.Logger,
	backend Backend,
	sessions auth.KeyedStore,
	cfg Config,
) *Handler {
	return &Handler{
		bot:              bot,
		logger:           logger,
		backend:          backend,
		sessions:         sessions,
		cfg:              cfg,
		chats:            storage.NewChatStorage[*chat](),
		questionMessages: storage.NewQuestionMessageStorage(),
	}
}

// Run polls updates until ctx is done. Updates are handled one at a time,
// so the state of a chat is never touched concurrently.
func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = h.cfg.UpdateTimeout

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		h.logger.Debug("update without message and callback")
		return
	}

	chatID := update.Message.Chat.ID
	messageID := update.Message.MessageID

	if !update.Message.IsCommand() {
		h.logger.Debug("text received", zap.Int64("chat_id", chatID))
		_ = h.withErrorHandling(h.handleTextAnswer(update.Message.Text))(ctx, chatID)
		return
	}

	// Credentials are never logged.
	h.logger.Debug("command received",
		zap.Int64("chat_id", chatID),
		zap.String("command", update.Message.Command()),
	)

	args := update.Message.CommandArguments()

	switch update.Message.Command() {
	case "start":
		_ = h.withErrorHandling(h.handleStart())(ctx, chatID)

	case "help":
		h.send(newPlainMessage(chatID, msgHelp))

	case "login":
		_ = h.withErrorHandling(h.handleLogin(entities.FamilyStudent, args, messageID))(ctx, chatID)

	case "stafflogin":
		_ = h.withErrorHandling(h.handleLogin(entities.FamilyStaff, args, messageID))(ctx, chatID)

	case "logout":
		_ = h.withErrorHandling(h.handleLogout())(ctx, chatID)

	case "whoami":
		_ = h.withErrorHandling(h.handleWhoAmI())(ctx, chatID)

	case "quiz":
		_ = h.withErrorHandling(h.handleQuiz(args))(ctx, chatID)

	case "question":
		_ = h.withErrorHandling(h.handleQuestion())(ctx, chatID)

	case "pathway":
		_ = h.withErrorHandling(h.handlePathway(args))(ctx, chatID)

	case "result":
		_ = h.withErrorHandling(h.handleResult(args))(ctx, chatID)

	default:
		h.send(newPlainMessage(chatID, msgUnknownCommand))
	}
}

func (h *Handler) sendError(chatID int64, text string) {
	h.send(newPlainMessage(chatID, text))
}

func (h *Handler) send(c tgbotapi.Chattable) tgbotapi.Message {
	msg, err := h.bot.Send(c)
	if err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Error(err),
		)
	}
	return msg
}

func (h *Handler) request(c tgbotapi.Chattable) {
	if _, err := h.bot.Request(c); err != nil {
		h.logger.Debug("telegram request failed", zap.Error(err))
	}
}
