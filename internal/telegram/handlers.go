package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/referral-bot/internal/ledger"
)

// --- Handlers ---

func (b *Bot) startHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	msg := update.Message
	b.handleStart(ctx, msg.Chat.ID, msg.From.ID, displayName(msg.From), msg.Text)
}

func (b *Bot) handleStart(ctx context.Context, chatID, userID int64, name, text string) {
	b.log.Info("start", "user_id", userID, "name", name)

	isNew, err := b.ledger.IsNewUser(ctx, userID)
	if err != nil {
		b.log.Error("check new user", "user_id", userID, "error", err)
		b.sendMessage(ctx, chatID, textStartError, nil)
		return
	}

	if err := b.ledger.UpsertUser(ctx, userID, name); err != nil {
		b.log.Error("upsert user", "user_id", userID, "error", err)
		b.sendMessage(ctx, chatID, textStartError, nil)
		return
	}

	if isNew {
		b.sendWelcome(ctx, chatID)
	} else {
		b.sendMenu(ctx, chatID)
	}

	payload := referralPayload(text)
	if payload == "" {
		return
	}

	referrerID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		b.log.Warn("invalid referral payload", "user_id", userID, "payload", payload)
		return
	}

	if _, err := b.ledger.RecordReferral(ctx, b, referrerID, userID); err != nil {
		b.log.Error("record referral",
			"referrer_id", referrerID,
			"invitee_id", userID,
			"error", err,
		)
		b.sendMessage(ctx, chatID, textStartError, nil)
	}
}

func (b *Bot) callbackHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	userID := cb.From.ID
	chatID := userID
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
	}

	answer := ""
	if err := b.handleCallback(ctx, chatID, userID, cb.Data); err != nil {
		b.log.Error("callback", "data", cb.Data, "user_id", userID, "error", err)
		answer = textCallbackError
	}

	// Answer callback to remove loading state
	if err := b.out.AnswerCallback(ctx, cb.ID, answer); err != nil {
		b.log.Error("answer callback", "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, chatID, userID int64, data string) error {
	switch data {
	case CallbackInviteLink:
		b.sendMessage(ctx, chatID, fmt.Sprintf(textInviteLink, InviteLink(b.cfg.BotUsername, userID)), nil)

	case CallbackInvitations:
		invites, err := b.ledger.Invitations(ctx, userID)
		if err != nil {
			return fmt.Errorf("invitations: %w", err)
		}
		b.sendMessage(ctx, chatID, fmt.Sprintf(textInvitationCount, len(invites)), nil)

	case CallbackBalance:
		balance, err := b.ledger.GetBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		b.sendMessage(ctx, chatID, textBalance+ledger.FormatBalance(balance), nil)

	case CallbackWithdraw:
		balance, err := b.ledger.GetBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		if !balance.Positive() {
			b.sendMessage(ctx, chatID, textNothingToWithdraw, nil)
			return nil
		}
		b.states.Set(userID, StateAwaitPayout, b.cfg.PayoutPromptTTL)
		b.sendMessage(ctx, chatID, textPayoutInstructions, nil)

	default:
		b.log.Warn("unknown callback", "data", data, "user_id", userID)
	}

	return nil
}

func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	b.handleText(ctx, update.Message.Chat.ID, update.Message.From.ID, update.Message.Text)
}

func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string) {
	dest, ok := b.payouts.Classify(text)
	if !ok {
		b.sendMessage(ctx, chatID, textNotUnderstood, nil)
		b.sendMenu(ctx, chatID)
		return
	}

	if b.cfg.PayoutRequirePrompt && !b.states.Is(userID, StateAwaitPayout) {
		b.log.Info("payout text without prompt", "user_id", userID, "kind", dest.Kind)
		b.sendMessage(ctx, chatID, textPressWithdrawFirst, b.mainKeyboard())
		return
	}

	res, err := b.ledger.Payout(ctx, userID, dest)
	if err != nil {
		b.log.Error("payout", "user_id", userID, "error", err)
		b.sendMessage(ctx, chatID, textMessageError, nil)
		return
	}
	b.states.Clear(userID)

	if res.Empty {
		b.sendMessage(ctx, chatID, textNothingToWithdraw, nil)
		return
	}
	b.sendMessage(ctx, chatID, textPayoutDone, nil)
}

// --- Helpers ---

func (b *Bot) sendWelcome(ctx context.Context, chatID int64) {
	if err := b.out.SendPhoto(ctx, chatID, b.cfg.WelcomePhotoURL, textWelcomeCaption, WelcomeKeyboard(b.cfg.MinerURL)); err != nil {
		b.log.Error("send welcome", "chat_id", chatID, "error", err)
	}

	delay := b.cfg.WelcomeMenuDelay
	if delay <= 0 {
		b.sendMenu(ctx, chatID)
		return
	}

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
			b.sendMenu(ctx, chatID)
		}
	}()
}

func (b *Bot) sendMenu(ctx context.Context, chatID int64) {
	b.sendMessage(ctx, chatID, textMenu, b.mainKeyboard())
}

func (b *Bot) mainKeyboard() *models.InlineKeyboardMarkup {
	return MainKeyboard(b.cfg.MinerURL, b.cfg.SupportURL)
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	if err := b.out.SendText(ctx, chatID, text, keyboard); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

// InviteLink returns the deep link that credits userID as referrer
func InviteLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

// referralPayload extracts the referrer id from "/start <id>" or "start=<id>"
func referralPayload(text string) string {
	if i := strings.Index(text, "start="); i >= 0 {
		fields := strings.Fields(text[i+len("start="):])
		if len(fields) > 0 {
			return fields[0]
		}
		return ""
	}

	fields := strings.Fields(text)
	if len(fields) >= 2 && strings.HasPrefix(fields[0], "/start") {
		return fields[1]
	}
	return ""
}

func displayName(u *models.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "amigo"
}
