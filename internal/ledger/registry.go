package ledger

import (
	"context"
	"errors"
	"strconv"

	"github.com/suspectuso/referral-bot/internal/retry"
	"github.com/suspectuso/referral-bot/internal/storage"
)

// IsNewUser reports whether no registry record exists for userID
func (l *Ledger) IsNewUser(ctx context.Context, userID int64) (bool, error) {
	path := userPath(usersRoot, userID)
	return retry.Value(ctx, l.userOp, "read "+path, func(ctx context.Context) (bool, error) {
		_, err := l.store.Get(ctx, path)
		if errors.Is(err, storage.ErrNotFound) {
			return true, nil
		}
		return false, err
	})
}

// UpsertUser overwrites the registry record with name and the current time.
// The record is rewritten on every visit, so SeenAt is the last visit.
func (l *Ledger) UpsertUser(ctx context.Context, userID int64, name string) error {
	return l.write(ctx, userPath(usersRoot, userID), User{
		Name:   name,
		SeenAt: l.now().UTC(),
	})
}

// UserIDs returns every registered user in key order. Keys that are not
// numeric chat ids are skipped.
func (l *Ledger) UserIDs(ctx context.Context) ([]int64, error) {
	docs, err := retry.Value(ctx, l.scanOp, "scan "+usersRoot, func(ctx context.Context) ([]storage.Document, error) {
		return l.store.Children(ctx, usersRoot)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		id, err := strconv.ParseInt(d.Key(), 10, 64)
		if err != nil {
			l.log.Warn("skipping non-numeric user key", "key", d.Key())
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}
