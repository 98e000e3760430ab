package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/auth"
	"github.com/aliskhannn/pathway-quiz-bot/internal/config"
	"github.com/aliskhannn/pathway-quiz-bot/internal/delivery/telegram"
	"github.com/aliskhannn/pathway-quiz-bot/internal/gateway"
	"github.com/aliskhannn/pathway-quiz-bot/internal/infra/postgres"
	"github.com/aliskhannn/pathway-quiz-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/pathway-quiz-bot/internal/logger"
	"github.com/aliskhannn/pathway-quiz-bot/internal/service"
	"github.com/aliskhannn/pathway-quiz-bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		lg.Fatal("failed to create bot", zap.Error(err))
	}

	// Set commands.
	commands := []tgbotapi.BotCommand{
		{
			Command:     "start",
			Description: "Запустить бота",
		},
		{
			Command:     "login",
			Description: "Вход для студентов (использование: /login логин пароль)",
		},
		{
			Command:     "stafflogin",
			Description: "Вход для преподавателей",
		},
		{
			Command:     "quiz",
			Description: "Начать квиз (использование: /quiz 5)",
		},
		{
			Command:     "question",
			Description: "Показать текущий вопрос",
		},
		{
			Command:     "pathway",
			Description: "Начать траекторию (использование: /pathway 4)",
		},
		{
			Command:     "result",
			Description: "Результат попытки",
		},
		{
			Command:     "whoami",
			Description: "Текущий пользователь",
		},
		{
			Command:     "logout",
			Description: "Выйти",
		},
		{
			Command:     "help",
			Description: "Помощь",
		},
	}

	_, err = bot.Request(tgbotapi.NewSetMyCommands(commands...))
	if err != nil {
		lg.Warn("failed to set bot commands", zap.Error(err))
	}

	bot.Debug = cfg.Bot.Debug
	lg.Info("authorized on account", zap.String("username", bot.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		lg.Fatal("failed to init session store", zap.Error(err))
	}
	defer closeStore()

	janitor := service.NewSessionJanitor(sessions, cfg.Auth.SweepSchedule, cfg.Auth.SessionTTL, lg.Named("janitor"))
	go func() {
		if err := janitor.Start(ctx); err != nil {
			lg.Error("session janitor failed", zap.Error(err))
		}
	}()

	client := gateway.New(gateway.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Paths: gateway.AuthPaths{
			StaffLogin:     cfg.Auth.StaffLoginPath,
			StaffRefresh:   cfg.Auth.StaffRefreshPath,
			StudentLogin:   cfg.Auth.StudentLoginPath,
			StudentRefresh: cfg.Auth.StudentRefreshPath,
			Logout:         cfg.Auth.LogoutPath,
		},
	}, lg.Named("gateway"))

	handler := telegram.NewHandler(
		bot,
		lg.Named("telegram"),
		client,
		sessions,
		telegram.Config{
			StorageKey:    cfg.Auth.StorageKey,
			UpdateTimeout: cfg.Bot.UpdateTimeout,
			RevokeTimeout: cfg.Auth.RevokeTimeout,
			TouchInterval: cfg.Auth.TouchInterval,
		},
	)
	if err := handler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("handler stopped", zap.Error(err))
	}

	bot.StopReceivingUpdates()
	lg.Info("shutdown signal received")
}

type sessionStore interface {
	auth.KeyedStore
	service.StaleSessionStore
}

// newSessionStore opens the configured session storage.
func newSessionStore(ctx context.Context, cfg *config.Config) (sessionStore, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		return storage.NewSessionStorage(), func() {}, nil
	}

	dsn, err := cfg.DB.DSN()
	if err != nil {
		return nil, nil, err
	}

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:        int32(cfg.DB.MaxConnections),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
		ConnectTimeout:  cfg.DB.ConnectTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := postgres.Migrate(ctx, postgres.NewTransactor(pool, postgres.Serializable())); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return repository.NewSessionRepository(pool), pool.Close, nil
}
