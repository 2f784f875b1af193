// Command intakecli runs the intake questionnaire in a terminal.
//
// Plain lines are answers. "/start" opens the menu, "#begin" and "#help"
// press the menu buttons.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/dietbot/internal/config"
	"github.com/zhouzirui/dietbot/internal/model/intake"
	"github.com/zhouzirui/dietbot/internal/model/locale"
	"github.com/zhouzirui/dietbot/internal/pkg/logger"
	"github.com/zhouzirui/dietbot/internal/service/ai"
	intakesvc "github.com/zhouzirui/dietbot/internal/service/intake"
	"github.com/zhouzirui/dietbot/internal/service/session"
)

type args struct {
	Locale   string `arg:"--locale,env:BOT_LOCALE" default:"ru" help:"locale of the questionnaire"`
	User     string `arg:"--user" default:"cli" help:"session key"`
	Echo     bool   `arg:"--echo" help:"reply with the compiled prompt instead of calling the provider"`
	LogLevel string `arg:"--log-level" default:"warn" help:"zap log level"`
}

func (args) Description() string {
	return "Drives the diet intake questionnaire from stdin."
}

func main() {
	var a args
	arg.MustParse(&a)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, os.Stdin, os.Stdout); err != nil {
		color.Red("intakecli: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a args, in io.Reader, out io.Writer) error {
	zl, err := logger.New(config.LogConfig{Level: a.LogLevel, Development: true})
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	texts, ok := locale.NewMemoryStore(locale.Seed()).FindByID(a.Locale)
	if !ok {
		return fmt.Errorf("unknown locale %q", a.Locale)
	}

	var generator intakesvc.Generator = echoGenerator{}
	if !a.Echo {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		generator, err = ai.New(ctx, cfg.AI, zl)
		if err != nil {
			return fmt.Errorf("%w (use --echo to run without a provider)", err)
		}
	}

	console := newConsole(out)
	engine := intakesvc.NewEngine(session.NewStore(0), generator, console, texts, zl)
	userID := intake.UserID(a.User)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		event := parseLine(userID, scanner.Text(), console.lastRef())
		if err := engine.Handle(ctx, event); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseLine(userID intake.UserID, line string, ref intake.MessageRef) intake.Event {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "/"):
		return intake.NewCommand(userID, strings.TrimPrefix(line, "/"))
	case strings.HasPrefix(line, "#"):
		return intake.NewSelection(userID, intake.Selection(strings.TrimPrefix(line, "#")), ref)
	default:
		return intake.NewText(userID, line)
	}
}

// echoGenerator returns the prompt it was given.
type echoGenerator struct{}

func (echoGenerator) Complete(_ context.Context, _, userPrompt string) (string, error) {
	return userPrompt, nil
}
