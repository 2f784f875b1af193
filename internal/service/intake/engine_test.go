package intake_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/dietbot/internal/model/intake"
	"github.com/zhouzirui/dietbot/internal/model/locale"
	"github.com/zhouzirui/dietbot/internal/service/ai"
	intakesvc "github.com/zhouzirui/dietbot/internal/service/intake"
	"github.com/zhouzirui/dietbot/internal/service/prompt"
	"github.com/zhouzirui/dietbot/internal/service/session"
)

type sentMessage struct {
	UserID  intake.UserID
	Text    string
	Buttons []intake.Button
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	edits   map[intake.MessageRef]string
	typing  int
	sendErr error
	editErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{edits: make(map[intake.MessageRef]string)}
}

func (m *fakeMessenger) SendMessage(_ context.Context, userID intake.UserID, text string, buttons ...intake.Button) (intake.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return intake.MessageRef{}, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{UserID: userID, Text: text, Buttons: buttons})
	return intake.MessageRef{UserID: userID, ID: fmt.Sprint(len(m.sent))}, nil
}

func (m *fakeMessenger) EditMessage(_ context.Context, ref intake.MessageRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits[ref] = text
	return nil
}

func (m *fakeMessenger) SendTyping(_ context.Context, _ intake.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing++
	return nil
}

func (m *fakeMessenger) messagesFor(userID intake.UserID) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, msg := range m.sent {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	systems []string
	prompts []string
}

func (g *fakeGenerator) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.systems = append(g.systems, systemPrompt)
	g.prompts = append(g.prompts, userPrompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type harness struct {
	engine    *intakesvc.Engine
	store     *session.Store
	chat      *fakeMessenger
	generator *fakeGenerator
	texts     locale.Locale
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	texts, ok := locale.NewMemoryStore(locale.Seed()).FindByID("en")
	require.True(t, ok)

	h := &harness{
		store:     session.NewStore(0),
		chat:      newFakeMessenger(),
		generator: &fakeGenerator{reply: "Monday: oatmeal (350 kcal)"},
		texts:     texts,
	}
	h.engine = intakesvc.NewEngine(h.store, h.generator, h.chat, texts, zap.NewNop())
	return h
}

func (h *harness) handle(t *testing.T, event intake.Event) {
	t.Helper()
	require.NoError(t, h.engine.Handle(context.Background(), event))
}

func (h *harness) begin(t *testing.T, userID intake.UserID) {
	t.Helper()
	h.handle(t, intake.NewCommand(userID, intake.CommandStart))
	h.handle(t, intake.NewSelection(userID, intake.SelectionBegin, intake.MessageRef{UserID: userID, ID: "1"}))
}

var answers = []string{"lose weight", "30 175 80", "moderate", "3000", "no dairy"}

func TestNoSessionBeforeAnyEvent(t *testing.T) {
	h := newHarness(t)

	_, ok := h.store.Get(context.Background(), "42")
	assert.False(t, ok)
}

func TestStartSendsWelcomeWithMenu(t *testing.T) {
	h := newHarness(t)

	h.handle(t, intake.NewCommand("42", intake.CommandStart))

	s, ok := h.store.Get(context.Background(), "42")
	require.True(t, ok)
	assert.Equal(t, intake.StageIdle, s.Stage)

	sent := h.chat.messagesFor("42")
	require.Len(t, sent, 1)
	assert.Equal(t, h.texts.Welcome, sent[0].Text)
	assert.Equal(t, []intake.Button{
		{Label: h.texts.Buttons.Begin, Data: intake.SelectionBegin},
		{Label: h.texts.Buttons.Help, Data: intake.SelectionHelp},
	}, sent[0].Buttons)
}

func TestStartAcceptsSlashPrefix(t *testing.T) {
	h := newHarness(t)

	h.handle(t, intake.NewCommand("42", "/start"))

	assert.Len(t, h.chat.messagesFor("42"), 1)
}

func TestStartThenBeginAsksAim(t *testing.T) {
	h := newHarness(t)
	ref := intake.MessageRef{UserID: "42", ID: "1"}

	h.begin(t, "42")

	s, ok := h.store.Get(context.Background(), "42")
	require.True(t, ok)
	assert.Equal(t, intake.StageAim, s.Stage)
	assert.Empty(t, s.Answers)
	assert.Equal(t, h.texts.Questions.Aim, h.chat.edits[ref])
	assert.Len(t, h.chat.messagesFor("42"), 1)
}

func TestBeginWithoutMenuMessageSendsQuestion(t *testing.T) {
	h := newHarness(t)

	h.handle(t, intake.NewSelection("42", intake.SelectionBegin, intake.MessageRef{}))

	sent := h.chat.messagesFor("42")
	require.Len(t, sent, 1)
	assert.Equal(t, h.texts.Questions.Aim, sent[0].Text)
}

func TestBeginFallsBackToSendWhenEditFails(t *testing.T) {
	h := newHarness(t)
	h.chat.editErr = errors.New("message is too old")

	h.begin(t, "42")

	sent := h.chat.messagesFor("42")
	require.Len(t, sent, 2)
	assert.Equal(t, h.texts.Questions.Aim, sent[1].Text)
}

func TestHelpKeepsStage(t *testing.T) {
	h := newHarness(t)
	ref := intake.MessageRef{UserID: "42", ID: "1"}
	h.handle(t, intake.NewCommand("42", intake.CommandStart))

	h.handle(t, intake.NewSelection("42", intake.SelectionHelp, ref))

	s, _ := h.store.Get(context.Background(), "42")
	assert.Equal(t, intake.StageIdle, s.Stage)
	assert.Equal(t, h.texts.Help, h.chat.edits[ref])
}

func TestEachAnswerAdvancesExactlyOneStage(t *testing.T) {
	h := newHarness(t)
	h.begin(t, "42")

	stages := intake.AnswerStages()
	for i, answer := range answers[:len(answers)-1] {
		before, _ := h.store.Get(context.Background(), "42")

		h.handle(t, intake.NewText("42", answer))

		after, _ := h.store.Get(context.Background(), "42")
		assert.Equal(t, stages[i+1], after.Stage)
		assert.Len(t, after.Answers, len(before.Answers)+1)
		for key, value := range before.Answers {
			assert.Equal(t, value, after.Answers[key])
		}
		assert.Equal(t, answer, after.Answers[stages[i].Field()])

		sent := h.chat.messagesFor("42")
		assert.Equal(t, h.texts.Question(after.Stage), sent[len(sent)-1].Text)
	}
}

func TestCompletionRepliesWithMenuAndDisclaimer(t *testing.T) {
	h := newHarness(t)
	h.begin(t, "42")

	for _, answer := range answers {
		h.handle(t, intake.NewText("42", answer))
	}

	require.Len(t, h.generator.prompts, 1)
	assert.Equal(t, prompt.SystemPrompt, h.generator.systems[0])
	expected, err := prompt.Compile(h.texts.Prompt, intake.Answers{
		intake.FieldAim:         "lose weight",
		intake.FieldParams:      "30 175 80",
		intake.FieldActivity:    "moderate",
		intake.FieldBudget:      "3000",
		intake.FieldPreferences: "no dairy",
	})
	require.NoError(t, err)
	assert.Equal(t, expected, h.generator.prompts[0])

	sent := h.chat.messagesFor("42")
	last := sent[len(sent)-1].Text
	assert.Equal(t, h.texts.Reply("Monday: oatmeal (350 kcal)"), last)
	assert.True(t, strings.HasSuffix(last, h.texts.Disclaimer))
	assert.Contains(t, last, "Monday: oatmeal (350 kcal)")
	assert.Equal(t, 1, h.chat.typing)

	s, _ := h.store.Get(context.Background(), "42")
	assert.Equal(t, intake.StageComplete, s.Stage)
}

func TestGenerationFailureSendsOneFallbackAndKeepsAnswers(t *testing.T) {
	h := newHarness(t)
	h.generator.err = &ai.GenerationError{Provider: ai.ProviderOpenAI, Err: errors.New("connection reset")}
	h.begin(t, "42")
	for _, answer := range answers[:len(answers)-1] {
		h.handle(t, intake.NewText("42", answer))
	}
	before := len(h.chat.messagesFor("42"))

	err := h.engine.Handle(context.Background(), intake.NewText("42", answers[len(answers)-1]))
	require.NoError(t, err)

	sent := h.chat.messagesFor("42")
	require.Len(t, sent, before+1)
	assert.Equal(t, h.texts.Failure, sent[len(sent)-1].Text)
	assert.Len(t, h.generator.prompts, 1)

	s, _ := h.store.Get(context.Background(), "42")
	assert.Equal(t, intake.StageComplete, s.Stage)
	assert.Len(t, s.Answers, len(answers))
	assert.Equal(t, "no dairy", s.Answers[intake.FieldPreferences])
}

func TestTextOutsideQuestionnaireIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.handle(t, intake.NewText("42", "hello"))
	_, ok := h.store.Get(context.Background(), "42")
	assert.False(t, ok)

	h.handle(t, intake.NewCommand("42", intake.CommandStart))
	h.handle(t, intake.NewText("42", "hello"))
	s, _ := h.store.Get(context.Background(), "42")
	assert.Equal(t, intake.StageIdle, s.Stage)
	assert.Empty(t, s.Answers)
	assert.Len(t, h.chat.messagesFor("42"), 1)
}

func TestTextAfterCompletionIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.begin(t, "42")
	for _, answer := range answers {
		h.handle(t, intake.NewText("42", answer))
	}
	count := len(h.chat.messagesFor("42"))

	h.handle(t, intake.NewText("42", "one more thing"))

	assert.Len(t, h.chat.messagesFor("42"), count)
	assert.Len(t, h.generator.prompts, 1)
}

func TestBlankTextDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	h.begin(t, "42")

	h.handle(t, intake.NewText("42", "  \n\t"))

	s, _ := h.store.Get(context.Background(), "42")
	assert.Equal(t, intake.StageAim, s.Stage)
	assert.Empty(t, s.Answers)
}

func TestBeginMidFlowResetsProgress(t *testing.T) {
	h := newHarness(t)
	h.begin(t, "42")
	h.handle(t, intake.NewText("42", "lose weight"))
	h.handle(t, intake.NewText("42", "30 175 80"))

	h.handle(t, intake.NewSelection("42", intake.SelectionBegin, intake.MessageRef{}))

	s, _ := h.store.Get(context.Background(), "42")
	assert.Equal(t, intake.StageAim, s.Stage)
	assert.Empty(t, s.Answers)
}

func TestInterleavedUsersStayIsolated(t *testing.T) {
	h := newHarness(t)
	users := map[intake.UserID][]string{
		"alice": {"gain mass", "25 180 70", "high", "5000", "vegan"},
		"bob":   {"lose weight", "40 165 90", "low", "2000", "no fish"},
	}

	var wg sync.WaitGroup
	for userID, replies := range users {
		userID, replies := userID, replies
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.begin(t, userID)
			for _, reply := range replies {
				assert.NoError(t, h.engine.Handle(context.Background(), intake.NewText(userID, reply)))
			}
		}()
	}
	wg.Wait()

	for userID, replies := range users {
		s, ok := h.store.Get(context.Background(), userID)
		require.True(t, ok)
		assert.Equal(t, intake.StageComplete, s.Stage)
		for i, stage := range intake.AnswerStages() {
			assert.Equal(t, replies[i], s.Answers[stage.Field()], "user %s field %s", userID, stage.Field())
		}
	}
	assert.Len(t, h.generator.prompts, 2)
}

func TestSendFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.chat.sendErr = errors.New("bot was blocked by the user")

	err := h.engine.Handle(context.Background(), intake.NewCommand("42", intake.CommandStart))

	assert.ErrorIs(t, err, h.chat.sendErr)
}

type vanishingSessions struct {
	*session.Store
}

func (v vanishingSessions) Update(_ context.Context, _ intake.UserID, _ session.Mutation) (intake.Session, error) {
	return intake.Session{}, session.ErrSessionNotFound
}

func TestMissingSessionOnUpdateIsReturned(t *testing.T) {
	store := session.NewStore(0)
	texts, _ := locale.NewMemoryStore(locale.Seed()).FindByID("en")
	engine := intakesvc.NewEngine(vanishingSessions{store}, &fakeGenerator{}, newFakeMessenger(), texts, zap.NewNop())

	err := engine.Handle(context.Background(), intake.NewSelection("42", intake.SelectionBegin, intake.MessageRef{}))

	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestEventWithoutUserIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.handle(t, intake.NewCommand("", intake.CommandStart))

	assert.Empty(t, h.chat.sent)
}

func TestAnswerIsStoredVerbatim(t *testing.T) {
	h := newHarness(t)
	h.begin(t, "42")

	h.handle(t, intake.NewText("42", "  lose weight\n"))

	s, _ := h.store.Get(context.Background(), "42")
	assert.Equal(t, intake.StageDetails, s.Stage)
	assert.Equal(t, "  lose weight\n", s.Answers[intake.FieldAim])
}
