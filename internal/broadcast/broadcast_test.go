package broadcast

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

	"github.com/shopspring/decimal"
	"github.com/suspectuso/referral-bot/internal/ledger"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeDirectory struct {
	ids     []int64
	entries []ledger.BalanceEntry
	err     error
}

func (d *fakeDirectory) UserIDs(ctx context.Context) ([]int64, error) {
	return d.ids, d.err
}

func (d *fakeDirectory) Leaderboard(ctx context.Context) ([]ledger.BalanceEntry, error) {
	return d.entries, d.err
}

type fakeSender struct {
	mu      sync.Mutex
	blocked map[int64]bool
	broken  map[int64]bool
	sent    map[int64][]string
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		blocked: make(map[int64]bool),
		broken:  make(map[int64]bool),
		sent:    make(map[int64][]string),
	}
}

func (s *fakeSender) Send(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blocked[chatID] {
		return fmt.Errorf("%w: Forbidden: bot was blocked by the user", ErrRecipientUnreachable)
	}
	if s.broken[chatID] {
		return errors.New("too many requests")
	}
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

func TestBroadcastCountsBlockedRecipients(t *testing.T) {
	const k, m = 10, 3

	dir := &fakeDirectory{}
	sender := newFakeSender()
	for i := int64(1); i <= k; i++ {
		dir.ids = append(dir.ids, i)
	}
	// Blocked users spread across the run
	for _, id := range []int64{2, 5, 10} {
		sender.blocked[id] = true
	}

	b := New(dir, sender, testLog)
	res, err := b.Broadcast(context.Background(), "test", func(context.Context) (string, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	if res.Total != k || res.Sent != k-m || res.Blocked != m || res.Failed != 0 {
		t.Errorf("got total=%d sent=%d blocked=%d failed=%d", res.Total, res.Sent, res.Blocked, res.Failed)
	}
	if len(sender.sent[1]) != 1 || sender.sent[1][0] != "hello" {
		t.Errorf("user 1 got %v", sender.sent[1])
	}
}

func TestBroadcastContinuesAfterOtherErrors(t *testing.T) {
	dir := &fakeDirectory{ids: []int64{1, 2, 3, 4}}
	sender := newFakeSender()
	sender.broken[1] = true
	sender.blocked[3] = true

	b := New(dir, sender, testLog)
	res, err := b.Broadcast(context.Background(), "test", func(context.Context) (string, error) {
		return "hi", nil
	})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	if res.Sent != 2 || res.Blocked != 1 || res.Failed != 1 {
		t.Errorf("got sent=%d blocked=%d failed=%d", res.Sent, res.Blocked, res.Failed)
	}
	if len(sender.sent[4]) != 1 {
		t.Error("iteration stopped before the last user")
	}
}

func TestBroadcastRegistryError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("store down")}
	b := New(dir, newFakeSender(), testLog)

	res, err := b.Broadcast(context.Background(), "test", func(context.Context) (string, error) {
		return "hi", nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Sent != 0 {
		t.Errorf("sent = %d", res.Sent)
	}
}

func TestPromoPicksFromList(t *testing.T) {
	dir := &fakeDirectory{ids: []int64{7}}
	sender := newFakeSender()

	b := New(dir, sender, testLog)
	b.pick = func(n int) int { return n - 1 }

	res, err := b.Promo(context.Background())
	if err != nil {
		t.Fatalf("Promo: %v", err)
	}
	if res.Job != "promo" || res.Sent != 1 {
		t.Errorf("got %+v", res)
	}
	if got := sender.sent[7][0]; got != PromoMessages[len(PromoMessages)-1] {
		t.Errorf("sent %q", got)
	}
}

func TestRankingSendsLeaderboard(t *testing.T) {
	dir := &fakeDirectory{
		ids: []int64{1, 2},
		entries: []ledger.BalanceEntry{
			{UserID: "2", Balance: ledger.Balance{USD: decimal.RequireFromString("3"), KZ: 3000}},
			{UserID: "1", Balance: ledger.Balance{USD: decimal.RequireFromString("0.5"), KZ: 500}},
		},
	}
	sender := newFakeSender()

	b := New(dir, sender, testLog)
	if _, err := b.Ranking(context.Background()); err != nil {
		t.Fatalf("Ranking: %v", err)
	}

	got := sender.sent[1][0]
	if !strings.HasPrefix(got, "🏆 TOP 10 MINERADORES DA SEMANA 🏆") {
		t.Errorf("unexpected header: %q", got)
	}
	if !strings.Contains(got, "1. Usuário 2: 3.00 USD | 3000 KZ\n2. Usuário 1: 0.50 USD | 500 KZ") {
		t.Errorf("unexpected body: %q", got)
	}
}

func TestSchedulerRegistersBothJobs(t *testing.T) {
	dir := &fakeDirectory{}
	b := New(dir, newFakeSender(), testLog)

	sc, err := NewScheduler(context.Background(), b, Schedule{
		PromoInterval:   12 * time.Hour,
		PromoFirstRun:   time.Minute,
		RankingInterval: 7 * 24 * time.Hour,
		RankingFirstRun: 2 * time.Minute,
	}, testLog)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer sc.Shutdown()

	names := sc.Jobs()
	if len(names) != 2 {
		t.Fatalf("jobs = %v", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["promo"] || !seen["ranking"] {
		t.Errorf("jobs = %v", names)
	}
}

func TestSchedulerRunsImmediateJob(t *testing.T) {
	dir := &fakeDirectory{ids: []int64{1}}
	sender := newFakeSender()
	b := New(dir, sender, testLog)

	sc, err := NewScheduler(context.Background(), b, Schedule{
		PromoInterval:   time.Hour,
		RankingInterval: time.Hour,
		RankingFirstRun: time.Hour,
	}, testLog)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sc.Start()
	defer sc.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sender.mu.Lock()
		n := len(sender.sent[1])
		sender.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("promo job did not run")
}
