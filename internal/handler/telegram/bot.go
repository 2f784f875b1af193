// Package telegram connects the intake engine to the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/zhouzirui/dietbot/internal/config"
	"github.com/zhouzirui/dietbot/internal/model/intake"
	intakesvc "github.com/zhouzirui/dietbot/internal/service/intake"
)

const (
	// maxMessageLength is the Bot API limit for a single text message.
	maxMessageLength = 4096
	// seenTTL bounds how long delivered update ids are remembered.
	seenTTL     = 10 * time.Minute
	retryDelay  = 3 * time.Second
	defaultPoll = 30
)

var allowedUpdates = []string{"message", "callback_query"}

// Bot is a Telegram messenger and update poller.
type Bot struct {
	api         *tgbotapi.BotAPI
	client      *pollClient
	pollTimeout int
	seen        *cache.Cache
	logger      *zap.Logger
}

// New authenticates against the public Bot API.
func New(cfg config.TelegramConfig, logger *zap.Logger) (*Bot, error) {
	return NewWithClient(cfg, tgbotapi.APIEndpoint, &http.Client{}, logger)
}

// NewWithClient authenticates against endpoint, a Bot API URL pattern of the
// form "https://host/bot%s/%s".
func NewWithClient(cfg config.TelegramConfig, endpoint string, client tgbotapi.HTTPClient, logger *zap.Logger) (*Bot, error) {
	if !cfg.Enabled() {
		return nil, errors.New("telegram token is required")
	}

	pc := &pollClient{HTTPClient: client}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, pc)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	api.Debug = cfg.Debug

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPoll
	}

	logger = logger.Named("telegram")
	logger.Info("authorized", zap.String("username", api.Self.UserName))

	return &Bot{
		api:         api,
		client:      pc,
		pollTimeout: pollTimeout,
		seen:        cache.New(seenTTL, 2*seenTTL),
		logger:      logger,
	}, nil
}

// Username returns the bot account name.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendMessage delivers text to a private chat, splitting it at the message
// size limit. Buttons are attached to the last part, one per row.
func (b *Bot) SendMessage(_ context.Context, userID intake.UserID, text string, buttons ...intake.Button) (intake.MessageRef, error) {
	chatID, err := chatIDOf(userID)
	if err != nil {
		return intake.MessageRef{}, err
	}

	parts := splitText(text, maxMessageLength)
	var last tgbotapi.Message
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && len(buttons) > 0 {
			msg.ReplyMarkup = keyboard(buttons)
		}
		last, err = b.api.Send(msg)
		if err != nil {
			return intake.MessageRef{}, fmt.Errorf("send message to %d: %w", chatID, err)
		}
	}

	return intake.MessageRef{UserID: userID, ID: strconv.Itoa(last.MessageID)}, nil
}

// EditMessage replaces the text of a previously sent message. Overflow beyond
// the size limit is sent as follow-up messages.
func (b *Bot) EditMessage(ctx context.Context, ref intake.MessageRef, text string) error {
	chatID, err := chatIDOf(ref.UserID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(ref.ID)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", ref.ID, err)
	}

	parts := splitText(text, maxMessageLength)
	if _, err := b.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, parts[0])); err != nil {
		return fmt.Errorf("edit message %d in %d: %w", messageID, chatID, err)
	}
	for _, part := range parts[1:] {
		if _, err := b.SendMessage(ctx, ref.UserID, part); err != nil {
			return err
		}
	}
	return nil
}

// SendTyping shows the typing indicator in the user's chat.
func (b *Bot) SendTyping(_ context.Context, userID intake.UserID) error {
	chatID, err := chatIDOf(userID)
	if err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("send typing to %d: %w", chatID, err)
	}
	return nil
}

// Run removes any webhook and polls for updates until ctx is done. Updates of
// one user are handled in order, different users concurrently. Cancelling ctx
// aborts a pending long poll.
func (b *Bot) Run(ctx context.Context, handler intakesvc.Handler) error {
	b.client.bind(ctx)
	defer b.client.bind(context.Background())

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	b.logger.Info("polling for updates", zap.Int("timeout_seconds", b.pollTimeout))

	queue := newDispatcher(func(ctx context.Context, event intake.Event) {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("handle update failed",
				zap.String("user", string(event.UserID)),
				zap.Stringer("kind", event.Kind),
				zap.Error(err),
			)
		}
	})
	defer queue.wait()

	offset := 0
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("polling stopped")
			return nil
		default:
		}

		updates, err := b.api.GetUpdates(tgbotapi.UpdateConfig{
			Offset:         offset,
			Timeout:        b.pollTimeout,
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("polling stopped")
				return nil
			}
			b.logger.Warn("get updates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if !b.firstDelivery(update.UpdateID) {
				b.logger.Debug("duplicate update", zap.Int("update_id", update.UpdateID))
				continue
			}

			b.acknowledge(update)
			event, ok := toEvent(update)
			if !ok {
				continue
			}
			queue.dispatch(ctx, event)
		}
	}
}

func (b *Bot) firstDelivery(updateID int) bool {
	return b.seen.Add(strconv.Itoa(updateID), struct{}{}, cache.DefaultExpiration) == nil
}

// acknowledge stops the client-side spinner of a pressed button.
func (b *Bot) acknowledge(update tgbotapi.Update) {
	if update.CallbackQuery == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
		b.logger.Warn("answer callback failed", zap.String("callback_id", update.CallbackQuery.ID), zap.Error(err))
	}
}

func keyboard(buttons []intake.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(button.Label, string(button.Data)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func chatIDOf(userID intake.UserID) (int64, error) {
	id, err := strconv.ParseInt(string(userID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a telegram user %q: %w", userID, err)
	}
	return id, nil
}
