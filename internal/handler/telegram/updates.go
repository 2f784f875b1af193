package telegram

import (
	"context"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zhouzirui/dietbot/internal/model/intake"
)

// toEvent converts an update from a private chat into an intake event.
// Group chats, edits and non-text messages are skipped.
func toEvent(update tgbotapi.Update) (intake.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil {
			return intake.Event{}, false
		}
		userID := userIDOf(cq.From.ID)
		var ref intake.MessageRef
		if cq.Message != nil && cq.Message.Chat != nil && cq.Message.Chat.IsPrivate() {
			ref = intake.MessageRef{UserID: userID, ID: strconv.Itoa(cq.Message.MessageID)}
		}
		return intake.NewSelection(userID, intake.Selection(cq.Data), ref), true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return intake.Event{}, false
	}

	userID := userIDOf(msg.From.ID)
	switch {
	case msg.IsCommand():
		return intake.NewCommand(userID, msg.Command()), true
	case msg.Text != "":
		return intake.NewText(userID, msg.Text), true
	default:
		return intake.Event{}, false
	}
}

func userIDOf(id int64) intake.UserID {
	return intake.UserID(strconv.FormatInt(id, 10))
}

// dispatcher runs handle on a per-user goroutine so one user's events keep
// their order while other users are not blocked by a slow generation.
// Queues are unbounded and dispatch never blocks the polling loop.
type dispatcher struct {
	handle func(context.Context, intake.Event)

	mu      sync.Mutex
	pending map[intake.UserID][]intake.Event
	wg      sync.WaitGroup
}

func newDispatcher(handle func(context.Context, intake.Event)) *dispatcher {
	return &dispatcher{
		handle:  handle,
		pending: make(map[intake.UserID][]intake.Event),
	}
}

func (d *dispatcher) dispatch(ctx context.Context, event intake.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	queue, running := d.pending[event.UserID]
	d.pending[event.UserID] = append(queue, event)
	if !running {
		d.wg.Add(1)
		go d.drain(ctx, event.UserID)
	}
}

// drain handles the user's events until the queue is empty. The map entry
// exists exactly while a drain goroutine owns the user.
func (d *dispatcher) drain(ctx context.Context, userID intake.UserID) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.pending[userID]
		if len(queue) == 0 {
			delete(d.pending, userID)
			d.mu.Unlock()
			return
		}
		event := queue[0]
		queue[0] = intake.Event{}
		d.pending[userID] = queue[1:]
		d.mu.Unlock()

		d.handle(ctx, event)
	}
}

// wait blocks until every queued event has been handled.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
