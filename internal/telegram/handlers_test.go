package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/suspectuso/referral-bot/internal/broadcast"
	"github.com/suspectuso/referral-bot/internal/config"
	"github.com/suspectuso/referral-bot/internal/ledger"
	"github.com/suspectuso/referral-bot/internal/retry"
	"github.com/suspectuso/referral-bot/internal/storage"
)

type sent struct {
	chatID   int64
	text     string
	photo    string
	keyboard *models.InlineKeyboardMarkup
}

type fakeMessenger struct {
	mu       sync.Mutex
	messages []sent
	answers  []string
	err      error
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, sent{chatID: chatID, text: text, keyboard: keyboard})
	return nil
}

func (f *fakeMessenger) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, keyboard *models.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sent{chatID: chatID, text: caption, photo: photoURL, keyboard: keyboard})
	return nil
}

func (f *fakeMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) to(chatID int64) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, m := range f.messages {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) last(chatID int64) sent {
	msgs := f.to(chatID)
	if len(msgs) == 0 {
		return sent{}
	}
	return msgs[len(msgs)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		BotUsername:     "Believeminerbot",
		MinerURL:        "https://believe-miner.surge.sh",
		SupportURL:      "https://t.me/Suporte20260",
		WelcomePhotoURL: "https://example.com/welcome.jpg",
		PayoutPromptTTL: time.Minute,
	}
}

func newTestBot(t *testing.T, cfg *config.Config) (*Bot, *fakeMessenger, *ledger.Ledger) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	led := ledger.New(storage.NewMemory(), ledger.Options{
		Retry:        retry.Policy{Attempts: 1},
		StoreTimeout: time.Second,
		ScanTimeout:  time.Second,
		Optimistic:   true,
	}, log)

	out := &fakeMessenger{}
	return newBot(cfg, led, out, log), out, led
}

func TestStartNewUserGetsWelcomeThenMenu(t *testing.T) {
	b, out, led := newTestBot(t, testConfig())
	ctx := context.Background()

	b.handleStart(ctx, 42, 42, "Ana", "/start")

	msgs := out.to(42)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].photo != "https://example.com/welcome.jpg" || !strings.HasPrefix(msgs[0].text, "📌 Convide e ganhe $50!") {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].text != textMenu || msgs[1].keyboard == nil {
		t.Errorf("second message = %+v", msgs[1])
	}

	isNew, err := led.IsNewUser(ctx, 42)
	if err != nil || isNew {
		t.Errorf("IsNewUser after start = %v, %v", isNew, err)
	}

	// Returning user only gets the menu
	b.handleStart(ctx, 42, 42, "Ana", "/start")
	msgs = out.to(42)
	if len(msgs) != 3 || msgs[2].text != textMenu {
		t.Errorf("returning user messages = %d", len(msgs))
	}
}

func TestStartWithReferralCreditsReferrer(t *testing.T) {
	b, out, led := newTestBot(t, testConfig())
	ctx := context.Background()

	b.handleStart(ctx, 200, 200, "Bia", "/start 100")
	b.handleStart(ctx, 300, 300, "Caio", "/start start=100")

	invites, err := led.Invitations(ctx, 100)
	if err != nil {
		t.Fatalf("Invitations: %v", err)
	}
	if len(invites) != 2 {
		t.Fatalf("invitations = %d, want 2", len(invites))
	}

	bal, err := led.GetBalance(ctx, 100)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.USD.Equal(decimal.RequireFromString("1")) || bal.KZ != 1000 {
		t.Errorf("balance = %s", ledger.FormatBalance(bal))
	}

	if got := out.last(100).text; !strings.Contains(got, "Você convidou 2 pessoas únicas") {
		t.Errorf("referrer notification = %q", got)
	}

	// Same invitee again: duplicate warning, no credit
	b.handleStart(ctx, 200, 200, "Bia", "/start 100")
	if got := out.last(100).text; got != "⚠️ Esse usuário já foi convidado anteriormente..." {
		t.Errorf("duplicate notification = %q", got)
	}
	bal, _ = led.GetBalance(ctx, 100)
	if bal.KZ != 1000 {
		t.Errorf("balance after duplicate = %d KZ", bal.KZ)
	}
}

func TestStartIgnoresMalformedPayload(t *testing.T) {
	b, _, led := newTestBot(t, testConfig())
	ctx := context.Background()

	b.handleStart(ctx, 5, 5, "Rui", "/start abc")

	ids, err := led.UserIDs(ctx)
	if err != nil {
		t.Fatalf("UserIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 5 {
		t.Errorf("users = %v", ids)
	}
}

func TestReferralPayload(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", ""},
		{"/start 123", "123"},
		{"/start@Believeminerbot 123", "123"},
		{"/start=123", "123"},
		{"/start start=123", "123"},
		{"start=", ""},
		{"/start  77  ", "77"},
	}

	for _, tt := range tests {
		if got := referralPayload(tt.text); got != tt.want {
			t.Errorf("referralPayload(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCallbacks(t *testing.T) {
	b, out, led := newTestBot(t, testConfig())
	ctx := context.Background()

	if err := b.handleCallback(ctx, 9, 9, CallbackInviteLink); err != nil {
		t.Fatal(err)
	}
	if got := out.last(9).text; got != "📋 Seu link de convite: https://t.me/Believeminerbot?start=9" {
		t.Errorf("link = %q", got)
	}

	if err := b.handleCallback(ctx, 9, 9, CallbackInvitations); err != nil {
		t.Fatal(err)
	}
	if got := out.last(9).text; got != "👥 Você já convidou 0 pessoas únicas." {
		t.Errorf("invitations = %q", got)
	}

	if _, err := led.Credit(ctx, 9, decimal.RequireFromString("1.5"), 1500); err != nil {
		t.Fatal(err)
	}
	if err := b.handleCallback(ctx, 9, 9, CallbackBalance); err != nil {
		t.Fatal(err)
	}
	if got := out.last(9).text; got != "💰 Seu saldo: 1.50 USD | 1500 KZ" {
		t.Errorf("balance = %q", got)
	}
}

func TestWithdrawCallback(t *testing.T) {
	b, out, led := newTestBot(t, testConfig())
	ctx := context.Background()

	if err := b.handleCallback(ctx, 9, 9, CallbackWithdraw); err != nil {
		t.Fatal(err)
	}
	if got := out.last(9).text; got != textNothingToWithdraw {
		t.Errorf("zero balance reply = %q", got)
	}
	if b.states.Is(9, StateAwaitPayout) {
		t.Error("state set for zero balance")
	}

	if _, err := led.Credit(ctx, 9, decimal.RequireFromString("0.5"), 500); err != nil {
		t.Fatal(err)
	}
	if err := b.handleCallback(ctx, 9, 9, CallbackWithdraw); err != nil {
		t.Fatal(err)
	}
	if got := out.last(9).text; got != textPayoutInstructions {
		t.Errorf("positive balance reply = %q", got)
	}
	if !b.states.Is(9, StateAwaitPayout) {
		t.Error("awaiting payout state not set")
	}
}

func TestPayoutText(t *testing.T) {
	b, out, led := newTestBot(t, testConfig())
	ctx := context.Background()

	if _, err := led.Credit(ctx, 1, decimal.RequireFromString("2.5"), 2500); err != nil {
		t.Fatal(err)
	}

	b.handleText(ctx, 1, 1, "+244923456789")
	if got := out.last(1).text; got != textPayoutDone {
		t.Errorf("first payout reply = %q", got)
	}

	bal, err := led.GetBalance(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Positive() {
		t.Errorf("balance after payout = %s", ledger.FormatBalance(bal))
	}

	b.handleText(ctx, 1, 1, "+244923456789")
	if got := out.last(1).text; got != textNothingToWithdraw {
		t.Errorf("second payout reply = %q", got)
	}

	reqs, err := led.PayoutRequests(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || reqs[0].Destination != "+244923456789" {
		t.Errorf("payout requests = %+v", reqs)
	}
}

func TestUnrecognizedTextShowsMenu(t *testing.T) {
	b, out, _ := newTestBot(t, testConfig())

	b.handleText(context.Background(), 3, 3, "olá")

	msgs := out.to(3)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].text != textNotUnderstood || msgs[1].text != textMenu {
		t.Errorf("messages = %q, %q", msgs[0].text, msgs[1].text)
	}
}

func TestPayoutRequiresPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.PayoutRequirePrompt = true
	b, out, led := newTestBot(t, cfg)
	ctx := context.Background()

	if _, err := led.Credit(ctx, 1, decimal.RequireFromString("0.5"), 500); err != nil {
		t.Fatal(err)
	}

	b.handleText(ctx, 1, 1, "+244923456789")
	if got := out.last(1).text; got != textPressWithdrawFirst {
		t.Errorf("reply without prompt = %q", got)
	}
	if bal, _ := led.GetBalance(ctx, 1); !bal.Positive() {
		t.Error("balance zeroed without prompt")
	}

	if err := b.handleCallback(ctx, 1, 1, CallbackWithdraw); err != nil {
		t.Fatal(err)
	}
	b.handleText(ctx, 1, 1, "+244923456789")
	if got := out.last(1).text; got != textPayoutDone {
		t.Errorf("reply after prompt = %q", got)
	}
	if b.states.Is(1, StateAwaitPayout) {
		t.Error("state not cleared after payout")
	}
}

func TestSendMarksUnreachable(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unreachable bool
	}{
		{"blocked", fmt.Errorf("%w, Forbidden: bot was blocked by the user", bot.ErrorForbidden), true},
		{"deactivated", fmt.Errorf("%w, Forbidden: user is deactivated", bot.ErrorForbidden), true},
		{"chat not found", errors.New("error response from telegram for method sendMessage, 400 Bad Request: chat not found"), true},
		{"rate limited", errors.New("error response from telegram for method sendMessage, 429 Too Many Requests: retry after 5"), false},
		{"forbidden text without sentinel", errors.New("proxy returned forbidden"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, out, _ := newTestBot(t, testConfig())
			out.err = tt.err

			err := b.Send(context.Background(), 1, "hi")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, broadcast.ErrRecipientUnreachable); got != tt.unreachable {
				t.Errorf("unreachable = %v, want %v (%v)", got, tt.unreachable, err)
			}
		})
	}
}

func panicking(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	panic("boom")
}

func TestRecoverMiddlewareRepliesToMessage(t *testing.T) {
	b, out, _ := newTestBot(t, testConfig())

	update := &models.Update{
		ID: 1,
		Message: &models.Message{
			Chat: models.Chat{ID: 7},
			From: &models.User{ID: 7},
			Text: "/start",
		},
	}
	b.recoverMiddleware(panicking)(context.Background(), nil, update)

	msgs := out.to(7)
	if len(msgs) != 1 || msgs[0].text != textMessageError {
		t.Errorf("messages after panic = %+v", msgs)
	}
}

func TestRecoverMiddlewareAnswersCallback(t *testing.T) {
	b, out, _ := newTestBot(t, testConfig())

	update := &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb1",
			From: models.User{ID: 8},
			Data: CallbackBalance,
		},
	}
	b.recoverMiddleware(panicking)(context.Background(), nil, update)

	if len(out.answers) != 1 || out.answers[0] != textCallbackError {
		t.Errorf("callback answers = %v", out.answers)
	}
	if msgs := out.to(8); len(msgs) != 1 || msgs[0].text != textMessageError {
		t.Errorf("messages after panic = %+v", msgs)
	}
}

func TestMainKeyboard(t *testing.T) {
	kb := MainKeyboard("https://miner", "https://support")

	if len(kb.InlineKeyboard) != 6 {
		t.Fatalf("rows = %d", len(kb.InlineKeyboard))
	}
	if kb.InlineKeyboard[0][0].WebApp == nil || kb.InlineKeyboard[0][0].WebApp.URL != "https://miner" {
		t.Error("first row is not the miner web app")
	}
	want := []string{CallbackInviteLink, CallbackInvitations, CallbackBalance, CallbackWithdraw}
	for i, data := range want {
		if got := kb.InlineKeyboard[i+1][0].CallbackData; got != data {
			t.Errorf("row %d callback = %q, want %q", i+1, got, data)
		}
	}
	if kb.InlineKeyboard[5][0].URL != "https://support" {
		t.Error("last row is not the support link")
	}
}
