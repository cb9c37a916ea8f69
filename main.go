package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"telegram-ai-diary/internal/config"
	"telegram-ai-diary/internal/handlers"
	"telegram-ai-diary/internal/health"
	"telegram-ai-diary/internal/llm"
	"telegram-ai-diary/internal/messages"
	"telegram-ai-diary/internal/reminders"
	"telegram-ai-diary/internal/scheduler"
	"telegram-ai-diary/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	_ = godotenv.Load() // TELEGRAM_TOKEN, GEMINI_API_KEY etc.

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:          "diarybot",
		Short:        "Telegram AI diary: morning plans, task reminders, evening reflection",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("store", config.DefaultStorePath, "chat store file (.json, or .db/.sqlite for SQLite)")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("health-addr", "", "listen address of the health endpoint, disabled when empty")
	_ = v.BindPFlag(config.KeyStorePath, flags.Lookup("store"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyHealthAddr, flags.Lookup("health-addr"))

	root.AddCommand(newTriggerCmd(v))
	return root
}

// app holds everything both the bot and the trigger command need.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	store   storage.Store
	bot     *tgbotapi.BotAPI
	handler *handlers.Handler
}

func newApp(v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	texts, err := messages.Load(cfg.TextsPath)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("authorized", "bot", bot.Self.UserName)

	gen := llm.NewClient(llm.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	return &app{
		cfg:     cfg,
		log:     logger,
		store:   store,
		bot:     bot,
		handler: handlers.NewHandler(bot, store, gen, texts, logger),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("close store", "error", err)
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	a, err := newApp(v)
	if err != nil {
		return err
	}
	defer a.close()

	schedCfg := scheduler.Config{MorningAt: a.cfg.MorningAt, EveningAt: a.cfg.EveningAt, Location: a.cfg.Location}
	s, err := scheduler.New(schedCfg, nil, a.log)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	defer func() {
		if err := s.Shutdown(); err != nil {
			a.log.Error("scheduler shutdown", "error", err)
		}
	}()

	rems := reminders.New(s, a.handler, nil, reminders.Options{Location: a.cfg.Location, Text: a.handler.Texts.Reminder}, a.log)
	a.handler.Reminders = rems

	if _, err := scheduler.Register(s, a.handler, schedCfg, a.log); err != nil {
		return err
	}
	s.Start()

	if a.cfg.HealthAddr != "" {
		srv := health.NewServer(a.store, rems, a.handler)
		go func() {
			if err := srv.Serve(ctx, a.cfg.HealthAddr, a.log); err != nil {
				a.log.Error("health server", "error", err)
			}
		}()
	}

	// handlers finish the update they are on after a shutdown signal
	work := context.WithoutCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.bot.GetUpdatesChan(u)
	a.log.Info("bot started")

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutting down")
			a.bot.StopReceivingUpdates()
			a.handler.Wait()
			return nil
		case upd, ok := <-updates:
			if !ok {
				a.handler.Wait()
				return nil
			}
			a.handler.Dispatch(work, upd)
		}
	}
}
