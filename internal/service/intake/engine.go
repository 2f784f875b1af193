// Package intake drives the questionnaire state machine for every chat user.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/dietbot/internal/model/intake"
	"github.com/zhouzirui/dietbot/internal/model/locale"
	"github.com/zhouzirui/dietbot/internal/service/prompt"
	"github.com/zhouzirui/dietbot/internal/service/session"
)

// Sessions is the session storage the engine reads and advances.
type Sessions interface {
	Get(ctx context.Context, userID intake.UserID) (intake.Session, bool)
	Create(ctx context.Context, userID intake.UserID) intake.Session
	Update(ctx context.Context, userID intake.UserID, mutation session.Mutation) (intake.Session, error)
}

// Generator produces the weekly menu for a compiled prompt.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Messenger delivers outbound text to a chat user.
type Messenger interface {
	SendMessage(ctx context.Context, userID intake.UserID, text string, buttons ...intake.Button) (intake.MessageRef, error)
	EditMessage(ctx context.Context, ref intake.MessageRef, text string) error
}

// Typer is implemented by messengers that can show a typing indicator.
type Typer interface {
	SendTyping(ctx context.Context, userID intake.UserID) error
}

// Handler consumes inbound events. Transports depend on this instead of the
// concrete engine.
type Handler interface {
	Handle(ctx context.Context, event intake.Event) error
}

// Engine routes inbound events through the questionnaire stages.
type Engine struct {
	sessions  Sessions
	generator Generator
	chat      Messenger
	texts     locale.Locale
	logger    *zap.Logger

	locks sync.Map // intake.UserID -> *sync.Mutex
}

// NewEngine wires an engine to its collaborators.
func NewEngine(sessions Sessions, generator Generator, chat Messenger, texts locale.Locale, logger *zap.Logger) *Engine {
	return &Engine{
		sessions:  sessions,
		generator: generator,
		chat:      chat,
		texts:     texts,
		logger:    logger.Named("engine"),
	}
}

// Handle processes one event. Events for the same user run one at a time in
// the order Handle is called; different users proceed independently.
// Generation failures are reported to the user and never returned.
func (e *Engine) Handle(ctx context.Context, event intake.Event) error {
	if event.UserID == "" {
		e.logger.Debug("ignoring event without user", zap.Stringer("kind", event.Kind))
		return nil
	}

	unlock := e.lock(event.UserID)
	defer unlock()

	switch event.Kind {
	case intake.EventCommand:
		return e.handleCommand(ctx, event)
	case intake.EventSelection:
		return e.handleSelection(ctx, event)
	case intake.EventText:
		return e.handleText(ctx, event)
	default:
		e.logger.Debug("ignoring unknown event", zap.String("user", string(event.UserID)), zap.Stringer("kind", event.Kind))
		return nil
	}
}

func (e *Engine) handleCommand(ctx context.Context, event intake.Event) error {
	if strings.TrimPrefix(event.Command, "/") != intake.CommandStart {
		e.logger.Debug("ignoring command", zap.String("user", string(event.UserID)), zap.String("command", event.Command))
		return nil
	}

	e.sessions.Create(ctx, event.UserID)
	if _, err := e.chat.SendMessage(ctx, event.UserID, e.texts.Welcome, e.texts.Menu()...); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

func (e *Engine) handleSelection(ctx context.Context, event intake.Event) error {
	switch event.Selection {
	case intake.SelectionBegin:
		e.sessions.Create(ctx, event.UserID)
		s, err := e.sessions.Update(ctx, event.UserID, func(s *intake.Session) {
			s.Stage = intake.StageAim
		})
		if err != nil {
			return e.invariant(event.UserID, err)
		}
		e.logger.Info("questionnaire started", zap.String("user", string(event.UserID)))
		return e.present(ctx, event, e.texts.Question(s.Stage))
	case intake.SelectionHelp:
		return e.present(ctx, event, e.texts.Help)
	default:
		e.logger.Debug("ignoring selection", zap.String("user", string(event.UserID)), zap.String("selection", string(event.Selection)))
		return nil
	}
}

func (e *Engine) handleText(ctx context.Context, event intake.Event) error {
	if strings.TrimSpace(event.Text) == "" {
		return nil
	}

	current, ok := e.sessions.Get(ctx, event.UserID)
	if !ok || !current.Stage.AcceptsText() {
		e.logger.Debug("ignoring text outside questionnaire", zap.String("user", string(event.UserID)))
		return nil
	}

	s, err := e.sessions.Update(ctx, event.UserID, func(s *intake.Session) {
		s.Record(event.Text)
	})
	if err != nil {
		return e.invariant(event.UserID, err)
	}

	if s.Stage == intake.StageComplete {
		return e.dispatch(ctx, s)
	}

	if _, err := e.chat.SendMessage(ctx, event.UserID, e.texts.Question(s.Stage)); err != nil {
		return fmt.Errorf("send question: %w", err)
	}
	return nil
}

// dispatch compiles the answers and replies with the generated menu or the
// fallback message. Answers stay in the session either way.
func (e *Engine) dispatch(ctx context.Context, s intake.Session) error {
	userPrompt, err := prompt.CompileSession(e.texts.Prompt, s)
	if err != nil {
		return e.invariant(s.UserID, err)
	}
	e.logger.Info("prompt compiled", zap.String("user", string(s.UserID)), zap.String("prompt", userPrompt))

	if typer, ok := e.chat.(Typer); ok {
		if err := typer.SendTyping(ctx, s.UserID); err != nil {
			e.logger.Warn("typing indicator failed", zap.String("user", string(s.UserID)), zap.Error(err))
		}
	}

	reply := e.texts.Failure
	menu, err := e.generator.Complete(ctx, prompt.SystemPrompt, userPrompt)
	if err != nil {
		e.logger.Error("menu generation failed", zap.String("user", string(s.UserID)), zap.Error(err))
	} else {
		reply = e.texts.Reply(menu)
	}

	if _, err := e.chat.SendMessage(ctx, s.UserID, reply); err != nil {
		return fmt.Errorf("send menu: %w", err)
	}
	return nil
}

// present edits the message that carried the pressed button, or sends a new
// one when there is nothing to edit.
func (e *Engine) present(ctx context.Context, event intake.Event, text string) error {
	if !event.Ref.IsZero() {
		err := e.chat.EditMessage(ctx, event.Ref, text)
		if err == nil {
			return nil
		}
		e.logger.Warn("edit failed, sending new message", zap.String("user", string(event.UserID)), zap.Error(err))
	}
	if _, err := e.chat.SendMessage(ctx, event.UserID, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (e *Engine) invariant(userID intake.UserID, err error) error {
	if errors.Is(err, session.ErrSessionNotFound) {
		e.logger.Error("session vanished mid-event", zap.String("user", string(userID)), zap.Error(err))
	} else {
		e.logger.Error("intake invariant violated", zap.String("user", string(userID)), zap.Error(err))
	}
	return err
}

func (e *Engine) lock(userID intake.UserID) func() {
	v, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
