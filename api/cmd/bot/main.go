package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"study-bot/api/internal/assistant"
	"study-bot/api/internal/config"
	"study-bot/api/internal/httpserver"
	"study-bot/api/internal/llm"
	"study-bot/api/internal/llm/gemini"
	"study-bot/api/internal/llm/hf"
	"study-bot/api/internal/logging"
	"study-bot/api/internal/session"
	"study-bot/api/internal/store"
	"study-bot/api/internal/telegram"
	"study-bot/api/internal/worker"
)

var (
	cfgPath string
	debug   bool
	devLog  bool
)

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Telegram-бот помощник для учёбы",
	Long: `Бот решает и объясняет задачи по тексту или фото,
перефразирует и сокращает текст. Ответы даёт языковая модель
(Hugging Face router или Gemini).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "YAML config file (env overrides it)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.Flags().BoolVar(&devLog, "dev", false, "human-readable console logs")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, devLog, debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// --- LLM backend ---
	provider, closeProvider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	gw := llm.NewGateway(provider, llm.Options{
		TextModel:   cfg.TextModel,
		VisionModel: cfg.VisionModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, log)

	// проверка модели не мешает старту: бот ответит ошибкой на конкретный запрос
	{
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := gw.Probe(pctx); err != nil {
			log.Warn("backend probe failed", zap.String("provider", gw.Provider()), zap.Error(err))
		} else {
			log.Info("backend ready", zap.String("provider", gw.Provider()), zap.String("text_model", cfg.TextModel))
		}
		cancel()
	}

	// --- Telegram ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	router := telegram.NewRouter(bot, cfg.ReplyFormat == config.FormatMarkdown, log)

	// --- Dispatcher ---
	opts := []assistant.Option{assistant.WithLogger(log)}
	if j := openJournal(ctx, cfg.DatabaseURL, log); j != nil {
		defer j.DB.Close()
		opts = append(opts, assistant.WithJournal(j))
	}
	pool := worker.NewPool(cfg.Workers)
	defer pool.Wait()
	d := assistant.NewDispatcher(session.NewStore(), gw, pool, router, opts...)

	// --- HTTP + event source ---
	srv := httpserver.New("0.0.0.0", cfg.Ports, log)
	events := make(chan assistant.Event)
	g, gctx := errgroup.WithContext(ctx)

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		path := telegram.WebhookPath(cfg.TelegramToken)
		srv.Webhook(path, router.WebhookHandler(gctx, events))
		if err := router.SetWebhook(webhookURL, path); err != nil {
			return err
		}
		log.Info("webhook mode")
	} else {
		g.Go(func() error { return router.Poll(gctx, events) })
	}

	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error { return d.Run(gctx, events) })

	log.Info("bot started",
		zap.String("provider", gw.Provider()),
		zap.Int("workers", cfg.Workers),
		zap.String("reply_format", cfg.ReplyFormat))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("bot stopped")
	return nil
}

func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, func(), error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		p, err := gemini.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini: %w", err)
		}
		return p, func() { _ = p.Close() }, nil
	default:
		return hf.New(cfg.HFAPIKey, cfg.HFBaseURL), func() {}, nil
	}
}

// openJournal подключает журнал, если задан DSN. Без базы бот работает как обычно.
func openJournal(ctx context.Context, dsn string, log *zap.Logger) *store.JournalRepo {
	if dsn == "" {
		return nil
	}
	db, err := store.Open(ctx, dsn)
	if err != nil {
		log.Warn("journal disabled", zap.Error(err))
		return nil
	}
	repo := store.NewJournalRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		log.Warn("journal disabled", zap.Error(err))
		return nil
	}
	log.Info("journal connected", zap.String("db", store.SafeDSNSummary(dsn)))
	return repo
}
