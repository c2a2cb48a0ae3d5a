// Package ledger keeps the user registry, the referral ledger and the
// balances in the document store.
//
// The ledger holds no state of its own: every decision re-reads the store.
// Balance and invitation updates are read-modify-write. With Optimistic set
// the write is a compare-and-set against the version that was read and a
// conflicting write re-reads and tries again; without it, concurrent updates
// to the same user can overwrite each other.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/suspectuso/referral-bot/internal/retry"
	"github.com/suspectuso/referral-bot/internal/storage"
)

const (
	usersRoot       = "usuarios"
	invitationsRoot = "convites"
	balancesRoot    = "saldos"
	payoutsRoot     = "saques"

	defaultMaxConflicts = 5
)

var ErrTooManyConflicts = errors.New("too many concurrent updates")

// Notifier delivers ledger messages to a user
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Options configures a Ledger
type Options struct {
	Retry        retry.Policy
	StoreTimeout time.Duration
	ScanTimeout  time.Duration
	Optimistic   bool
	MaxConflicts int
	Now          func() time.Time
}

// Ledger implements the registry, referral and balance operations
type Ledger struct {
	store        storage.Store
	userOp       retry.Policy
	scanOp       retry.Policy
	optimistic   bool
	maxConflicts int
	now          func() time.Time
	log          *slog.Logger
}

// New creates a Ledger over store
func New(store storage.Store, opts Options, log *slog.Logger) *Ledger {
	if opts.Retry.Log == nil {
		opts.Retry.Log = log
	}
	if opts.MaxConflicts <= 0 {
		opts.MaxConflicts = defaultMaxConflicts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Ledger{
		store:        store,
		userOp:       opts.Retry.WithTimeout(opts.StoreTimeout),
		scanOp:       opts.Retry.WithTimeout(opts.ScanTimeout),
		optimistic:   opts.Optimistic,
		maxConflicts: opts.MaxConflicts,
		now:          opts.Now,
		log:          log,
	}
}

func userPath(root string, userID int64) string {
	return storage.Join(root, strconv.FormatInt(userID, 10))
}

// read loads the document at path into dest. A missing document leaves dest
// untouched and reports version 0.
func (l *Ledger) read(ctx context.Context, path string, dest any) (int64, error) {
	return retry.Value(ctx, l.userOp, "read "+path, func(ctx context.Context) (int64, error) {
		version, err := storage.GetJSON(ctx, l.store, path, dest)
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return version, err
	})
}

func (l *Ledger) write(ctx context.Context, path string, value any) error {
	return l.userOp.Do(ctx, "write "+path, func(ctx context.Context) error {
		return storage.SetJSON(ctx, l.store, path, value)
	})
}

// update runs a read-modify-write on the document at path. fn receives the
// current value and returns the next one, or false to leave it unchanged.
func update[T any](ctx context.Context, l *Ledger, path string, fn func(cur T) (T, bool)) (T, error) {
	for conflicts := 0; ; conflicts++ {
		var cur T
		version, err := l.read(ctx, path, &cur)
		if err != nil {
			return cur, err
		}

		next, changed := fn(cur)
		if !changed {
			return cur, nil
		}

		if !l.optimistic {
			return next, l.write(ctx, path, next)
		}

		conflict, err := retry.Value(ctx, l.userOp, "compare and set "+path, func(ctx context.Context) (bool, error) {
			err := storage.CompareAndSetJSON(ctx, l.store, path, version, next)
			if errors.Is(err, storage.ErrVersionConflict) {
				return true, nil
			}
			return false, err
		})
		if err != nil {
			return next, err
		}
		if !conflict {
			return next, nil
		}

		l.log.Debug("concurrent update, re-reading", "path", path, "version", version)
		if conflicts+1 >= l.maxConflicts {
			return next, fmt.Errorf("%s: %w", path, ErrTooManyConflicts)
		}
	}
}
