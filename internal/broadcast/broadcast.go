// Package broadcast fans a message out to every registered user.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"
	"github.com/suspectuso/referral-bot/internal/ledger"
)

// ErrRecipientUnreachable marks a send that failed because the user blocked
// the bot or the chat no longer exists.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// Sender delivers one message to one chat
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Directory is the part of the ledger a broadcast reads
type Directory interface {
	UserIDs(ctx context.Context) ([]int64, error)
	Leaderboard(ctx context.Context) ([]ledger.BalanceEntry, error)
}

// Selector picks the message for a run
type Selector func(ctx context.Context) (string, error)

// Result summarizes one broadcast run
type Result struct {
	RunID   uuid.UUID
	Job     string
	Total   int
	Sent    int
	Blocked int
	Failed  int
}

// PromoMessages is the rotation used by the promotional broadcast
var PromoMessages = []string{
	"📢 Guru da Mineração: 💎 Faça staking hoje e aumente seus ganhos!",
	"🏆 Ranking atualizado: os maiores mineradores estão lucrando pesado!",
	"🚀 BELIEVE MINER está crescendo rápido, não fique de fora!",
	"💡 Dica do dia: convide amigos e multiplique seus lucros!",
	"🔥 Staking ativo: quem mantém saldo ganha mais recompensas!",
}

// Broadcaster runs broadcast jobs
type Broadcaster struct {
	dir    Directory
	sender Sender
	pick   func(n int) int
	log    *slog.Logger
}

// New creates a Broadcaster
func New(dir Directory, sender Sender, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		dir:    dir,
		sender: sender,
		pick:   rand.Intn,
		log:    log,
	}
}

// Broadcast sends the selected message to every registered user. Send
// failures are counted and never stop the run.
func (b *Broadcaster) Broadcast(ctx context.Context, job string, selector Selector) (*Result, error) {
	res := &Result{RunID: uuid.New(), Job: job}
	log := b.log.With("job", job, "run_id", res.RunID)

	text, err := selector(ctx)
	if err != nil {
		return res, fmt.Errorf("select message: %w", err)
	}

	ids, err := b.dir.UserIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("read users: %w", err)
	}
	res.Total = len(ids)

	log.Info("broadcast started", "recipients", res.Total)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		err := b.sender.Send(ctx, id, text)
		switch {
		case err == nil:
			res.Sent++
		case errors.Is(err, ErrRecipientUnreachable):
			res.Blocked++
			log.Debug("recipient unreachable", "chat_id", id, "error", err)
		default:
			res.Failed++
			log.Error("broadcast send", "chat_id", id, "error", err)
		}
	}

	log.Info("broadcast finished",
		"sent", res.Sent,
		"blocked", res.Blocked,
		"failed", res.Failed,
	)

	return res, ctx.Err()
}

// Promo broadcasts one message picked at random from PromoMessages
func (b *Broadcaster) Promo(ctx context.Context) (*Result, error) {
	return b.Broadcast(ctx, "promo", func(context.Context) (string, error) {
		return PromoMessages[b.pick(len(PromoMessages))], nil
	})
}

// Ranking broadcasts the current leaderboard
func (b *Broadcaster) Ranking(ctx context.Context) (*Result, error) {
	return b.Broadcast(ctx, "ranking", func(ctx context.Context) (string, error) {
		entries, err := b.dir.Leaderboard(ctx)
		if err != nil {
			return "", fmt.Errorf("leaderboard: %w", err)
		}
		return ledger.FormatLeaderboard(entries), nil
	})
}
