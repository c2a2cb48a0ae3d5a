package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/referral-bot/internal/broadcast"
	"github.com/suspectuso/referral-bot/internal/config"
	"github.com/suspectuso/referral-bot/internal/ledger"
)

// messenger is the outbound side of the transport
type messenger interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, keyboard *models.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Bot wraps the telegram bot with handlers
type Bot struct {
	bot     *bot.Bot
	cfg     *config.Config
	ledger  *ledger.Ledger
	payouts ledger.Recognizer
	states  *StateManager
	out     messenger
	log     *slog.Logger
}

// New creates a new telegram bot
func New(cfg *config.Config, led *ledger.Ledger, log *slog.Logger) (*Bot, error) {
	b := newBot(cfg, led, nil, log)

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, b.callbackHandler),
		bot.WithMiddlewares(b.recoverMiddleware),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.bot = tgBot
	b.out = &tgMessenger{bot: tgBot}

	// Covers "/start", "/start <payload>" and "/start=<payload>"
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.startHandler)

	return b, nil
}

func newBot(cfg *config.Config, led *ledger.Ledger, out messenger, log *slog.Logger) *Bot {
	return &Bot{
		cfg:     cfg,
		ledger:  led,
		payouts: ledger.Recognizer{AcceptTON: cfg.PayoutAcceptTON},
		states:  NewStateManager(),
		out:     out,
		log:     log,
	}
}

// Start starts the bot polling
func (b *Bot) Start(ctx context.Context) {
	b.bot.Start(ctx)
}

// Notify sends a plain notification to a user
func (b *Bot) Notify(ctx context.Context, userID int64, text string) error {
	return b.out.SendText(ctx, userID, text, nil)
}

// Send delivers a broadcast message. Recipients that blocked the bot or
// can no longer be reached are reported as broadcast.ErrRecipientUnreachable.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	err := b.out.SendText(ctx, chatID, text, nil)
	if err != nil && isUnreachable(err) {
		return fmt.Errorf("%w: %v", broadcast.ErrRecipientUnreachable, err)
	}
	return err
}

// isUnreachable reports a 403 from the Bot API (blocked, deactivated, never
// started) or a 400 for a chat that no longer exists.
func isUnreachable(err error) bool {
	if errors.Is(err, bot.ErrorForbidden) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "chat not found")
}

func (b *Bot) recoverMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("handler panic", "panic", r, "update_id", update.ID)
				b.apologize(ctx, update)
			}
		}()
		next(ctx, tgBot, update)
	}
}

func (b *Bot) apologize(ctx context.Context, update *models.Update) {
	switch {
	case update.Message != nil:
		b.sendMessage(ctx, update.Message.Chat.ID, textMessageError, nil)
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if err := b.out.AnswerCallback(ctx, cb.ID, textCallbackError); err != nil {
			b.log.Error("answer callback", "error", err)
		}
		b.sendMessage(ctx, cb.From.ID, textMessageError, nil)
	}
}

// tgMessenger sends through the Bot API
type tgMessenger struct {
	bot *bot.Bot
}

func (m *tgMessenger) SendText(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	disablePreview := true
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := m.bot.SendMessage(ctx, params)
	return err
}

func (m *tgMessenger) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, keyboard *models.InlineKeyboardMarkup) error {
	params := &bot.SendPhotoParams{
		ChatID:    chatID,
		Photo:     &models.InputFileString{Data: photoURL},
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := m.bot.SendPhoto(ctx, params)
	return err
}

func (m *tgMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := m.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return err
}
