package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/pathway-quiz-bot/internal/auth"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/gateway"
)

// Bot is the part of the Telegram API the handler uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Backend is the quiz platform client shared by all chats.
// SessionToucher is implemented by session stores that track last use, so
// sessions of active chats survive stale-session sweeps.
type SessionToucher interface {
	TouchSession(ctx context.Context, key string) error
}

type Backend interface {
	auth.Refresher
	auth.Revoker
	Login(ctx context.Context, family entities.Family, username, password string) (*entities.AuthSession, error)
	WithSession(a gateway.Authorizer) *gateway.API
}
