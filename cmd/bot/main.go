package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/dietbot/internal/config"
	"github.com/zhouzirui/dietbot/internal/handler"
	"github.com/zhouzirui/dietbot/internal/handler/telegram"
	"github.com/zhouzirui/dietbot/internal/handler/webchat"
	"github.com/zhouzirui/dietbot/internal/model/locale"
	"github.com/zhouzirui/dietbot/internal/pkg/logger"
	"github.com/zhouzirui/dietbot/internal/service/ai"
	intakesvc "github.com/zhouzirui/dietbot/internal/service/intake"
	"github.com/zhouzirui/dietbot/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	if envErr != nil {
		zl.Warn("continuing with system environment variables only", zap.Error(envErr))
	}

	printBanner(cfg)

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("bot stopped", zap.Error(err))
	}
	zl.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	if !cfg.Telegram.Enabled() {
		return errors.New("BOT_API_TOKEN is not set")
	}
	if !cfg.AI.Enabled() {
		return fmt.Errorf("%s provider credentials are not set", cfg.AI.Provider)
	}

	locales := locale.NewMemoryStore(locale.Seed())
	texts, ok := locales.FindByID(cfg.Locale)
	if !ok {
		return fmt.Errorf("unknown locale %q", cfg.Locale)
	}

	sessions := session.NewStore(cfg.Session.TTL)

	generator, err := ai.New(ctx, cfg.AI, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize %s generator: %w", cfg.AI.Provider, err)
	}
	zl.Info("generator initialized", zap.String("provider", cfg.AI.Provider))

	bot, err := telegram.New(cfg.Telegram, zl)
	if err != nil {
		return err
	}
	botEngine := intakesvc.NewEngine(sessions, generator, bot, texts, zl)

	var webChat *webchat.Handler
	if cfg.WebChat.Enabled {
		hub := webchat.NewHub(zl)
		webChat = webchat.NewHandler(hub, intakesvc.NewEngine(sessions, generator, hub, texts, zl), zl)
	}

	router := handler.NewRouter(handler.Deps{
		Locales:         locales,
		Sessions:        sessions,
		InspectSessions: cfg.Session.Inspect,
		WebChat:         webChat,
		Logger:          zl,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http listening", zap.String("addr", srv.Addr))
		return runServer(gctx, srv)
	})
	g.Go(func() error {
		return bot.Run(gctx, botEngine)
	})
	return g.Wait()
}

func printBanner(cfg *config.Config) {
	title := color.New(color.FgGreen, color.Bold)
	label := color.New(color.FgCyan)

	title.Println("dietbot")
	label.Print("  locale    ")
	fmt.Println(cfg.Locale)
	label.Print("  provider  ")
	fmt.Println(cfg.AI.Provider)
	label.Print("  http      ")
	fmt.Println(cfg.Server.Addr)
	label.Print("  web chat  ")
	fmt.Println(cfg.WebChat.Enabled)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
