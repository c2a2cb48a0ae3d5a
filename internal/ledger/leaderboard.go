package ledger

import (
	"context"
	"sort"
)

// LeaderboardSize is the number of entries in the weekly ranking
const LeaderboardSize = 10

// Leaderboard returns the top balances by USD, highest first
func (l *Ledger) Leaderboard(ctx context.Context) ([]BalanceEntry, error) {
	entries, err := l.Balances(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(entries, LeaderboardSize), nil
}

// Rank sorts entries by USD descending, keeping the given order among equal
// balances, and returns at most limit of them.
func Rank(entries []BalanceEntry, limit int) []BalanceEntry {
	ranked := make([]BalanceEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Balance.USD.GreaterThan(ranked[j].Balance.USD)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
