// Package numbering assigns globally unique, human-readable invoice numbers
// of the form {accountCode}-{year}-{seq}, e.g. U0007-2026-0042.
package numbering

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceapp/invoiceapp/internal/counter"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

const (
	accountCodeSequenceKey = "account:code:sequence"
	accountCodePrefix      = "account:code:"
	invoiceSequencePrefix  = "invoice:sequence:"

	accountCodeFormat   = "U%04d"
	invoiceNumberFormat = "%s-%d-%04d"
)

// Allocator produces invoice numbers backed by the shared counter store.
// Correctness under concurrent callers relies entirely on the store's atomic
// increment; the allocator holds no locks around the sequence itself.
type Allocator struct {
	store  *counter.Store
	logger *slog.Logger
	now    func() time.Time

	// codes memoises account short codes, which are immutable once assigned.
	codes sync.Map
}

// NewAllocator constructs an Allocator. now may be nil, defaulting to
// time.Now (UTC).
func NewAllocator(store *counter.Store, logger *slog.Logger, now func() time.Time) *Allocator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Allocator{store: store, logger: logger, now: now}
}

// Allocate returns the next invoice number for the account. A failure of the
// counter store is fatal to the request: invoice creation must never proceed
// with a guessed or missing number.
func (a *Allocator) Allocate(ctx context.Context, accountID uuid.UUID) (string, error) {
	year := a.now().Year()

	code, err := a.accountCode(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrNumberAllocation, err)
	}

	seq, err := a.nextSequence(ctx, accountID, year)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrNumberAllocation, err)
	}

	return fmt.Sprintf(invoiceNumberFormat, code, year, seq), nil
}

// accountCode looks up the account's short code, assigning one on first use.
// A lost SetIfAbsent race re-reads the winner's code, so every caller agrees
// on a single assignment per account.
func (a *Allocator) accountCode(ctx context.Context, accountID uuid.UUID) (string, error) {
	if cached, ok := a.codes.Load(accountID); ok {
		return cached.(string), nil
	}

	key := accountCodePrefix + accountID.String()
	existing, err := a.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if existing != "" {
		a.codes.Store(accountID, existing)
		return existing, nil
	}

	seq, err := a.store.Increment(ctx, accountCodeSequenceKey)
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf(accountCodeFormat, seq)

	won, err := a.store.SetIfAbsent(ctx, key, code)
	if err != nil {
		return "", err
	}
	if !won {
		code, err = a.store.Get(ctx, key)
		if err != nil {
			return "", err
		}
	} else if a.logger != nil {
		a.logger.Info("assigned account code",
			slog.String("account_id", accountID.String()),
			slog.String("code", code))
	}

	a.codes.Store(accountID, code)
	return code, nil
}

func (a *Allocator) nextSequence(ctx context.Context, accountID uuid.UUID, year int) (int64, error) {
	key := fmt.Sprintf("%s%s:%d", invoiceSequencePrefix, accountID, year)

	seq, err := a.store.Increment(ctx, key)
	if err != nil {
		return 0, err
	}

	// First use of a year: let the key self-clean one month past year-end.
	if seq == 1 {
		expiry := time.Date(year+1, time.February, 1, 0, 0, 0, 0, time.UTC)
		ttl := expiry.Sub(a.now())
		if ttl > 0 {
			if err := a.store.Expire(ctx, key, ttl); err != nil && a.logger != nil {
				a.logger.Warn("set sequence expiry", slog.Any("error", err), slog.String("key", key))
			}
		}
	}

	return seq, nil
}
