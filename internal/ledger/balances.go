package ledger

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/suspectuso/referral-bot/internal/retry"
	"github.com/suspectuso/referral-bot/internal/storage"
)

// PayoutResult describes the outcome of Payout
type PayoutResult struct {
	// Empty is set when there was nothing to withdraw
	Empty   bool
	Paid    Balance
	Request *PayoutRequest
}

// GetBalance returns the user's balance, zero if none is stored
func (l *Ledger) GetBalance(ctx context.Context, userID int64) (Balance, error) {
	var b Balance
	_, err := l.read(ctx, userPath(balancesRoot, userID), &b)
	return b, err
}

// Credit adds usd and kz to the user's balance and returns the new balance
func (l *Ledger) Credit(ctx context.Context, userID int64, usd decimal.Decimal, kz int64) (Balance, error) {
	return update(ctx, l, userPath(balancesRoot, userID), func(cur Balance) (Balance, bool) {
		return Balance{USD: cur.USD.Add(usd), KZ: cur.KZ + kz}, true
	})
}

// Payout zeroes a positive balance and stores a payout request for manual
// settlement. No money moves here.
func (l *Ledger) Payout(ctx context.Context, userID int64, dest Destination) (*PayoutResult, error) {
	result := &PayoutResult{}
	_, err := update(ctx, l, userPath(balancesRoot, userID), func(cur Balance) (Balance, bool) {
		if !cur.Positive() {
			result.Empty = true
			return cur, false
		}
		result.Empty = false
		result.Paid = cur
		return Balance{}, true
	})
	if err != nil {
		return nil, err
	}
	if result.Empty {
		return result, nil
	}

	req := &PayoutRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Destination: dest.Normalized,
		Kind:        dest.Kind,
		ChecksumOK:  dest.ChecksumOK,
		USD:         json.Number(result.Paid.USD.String()),
		KZ:          result.Paid.KZ,
		At:          l.now().UTC(),
	}
	result.Request = req

	path := storage.Join(userPath(payoutsRoot, userID), req.ID)
	if err := l.write(ctx, path, req); err != nil {
		// The balance is already zero; the operator still sees the log line.
		l.log.Error("store payout request",
			"user_id", userID,
			"destination", req.Destination,
			"usd", req.USD,
			"kz", req.KZ,
			"error", err,
		)
		return result, nil
	}

	l.log.Info("payout processed",
		"user_id", userID,
		"request_id", req.ID,
		"kind", req.Kind,
		"usd", req.USD,
		"kz", req.KZ,
	)
	return result, nil
}

// Balances returns every stored balance in key order
func (l *Ledger) Balances(ctx context.Context) ([]BalanceEntry, error) {
	docs, err := retry.Value(ctx, l.scanOp, "scan "+balancesRoot, func(ctx context.Context) ([]storage.Document, error) {
		return l.store.Children(ctx, balancesRoot)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]BalanceEntry, 0, len(docs))
	for _, d := range docs {
		var b Balance
		if err := json.Unmarshal(d.Value, &b); err != nil {
			l.log.Warn("skipping malformed balance", "key", d.Key(), "error", err)
			continue
		}
		entries = append(entries, BalanceEntry{UserID: d.Key(), Balance: b})
	}

	return entries, nil
}

// PayoutRequests returns the stored payout requests of a user
func (l *Ledger) PayoutRequests(ctx context.Context, userID int64) ([]PayoutRequest, error) {
	docs, err := retry.Value(ctx, l.userOp, "scan payouts", func(ctx context.Context) ([]storage.Document, error) {
		return l.store.Children(ctx, userPath(payoutsRoot, userID))
	})
	if err != nil {
		return nil, err
	}

	reqs := make([]PayoutRequest, 0, len(docs))
	for _, d := range docs {
		var r PayoutRequest
		if err := json.Unmarshal(d.Value, &r); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}
