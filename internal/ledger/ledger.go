package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"casino_wallet/internal/serviceerrs"
	"casino_wallet/internal/storage"
)

// Ledger bundles the transaction store, the balance calculator and the
// balance cache behind the operations every money-moving flow needs.
type Ledger struct {
	db    *gorm.DB
	repo  *Repository
	calc  *Calculator
	cache *BalanceCache
}

func New(db *gorm.DB, repo *Repository, calc *Calculator, cache *BalanceCache) *Ledger {
	return &Ledger{db: db, repo: repo, calc: calc, cache: cache}
}

func (l *Ledger) DB() *gorm.DB {
	return l.db
}

func (l *Ledger) Repository() *Repository {
	return l.repo
}

func (l *Ledger) Cache() *BalanceCache {
	return l.cache
}

// Commit identifies the ledger head version an Execute call committed.
type Commit struct {
	UserID  string
	Version int64
}

// Execute runs fn in one database transaction that holds the user's ledger
// head lock, so a balance check inside fn stays valid until commit. fn may run
// more than once when the transaction is retried.
func (l *Ledger) Execute(ctx context.Context, userID string, fn func(tx *gorm.DB) error) (Commit, error) {
	var commit Commit
	err := storage.WithTx(ctx, l.db, func(tx *gorm.DB) error {
		acct, err := l.repo.LockAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		if err := l.repo.Touch(ctx, tx, userID); err != nil {
			return err
		}
		commit = Commit{UserID: userID, Version: acct.Version + 1}
		return nil
	})
	if err != nil {
		return Commit{}, err
	}
	return commit, nil
}

// MaxReferenceLength bounds client supplied reference ids.
const MaxReferenceLength = 128

var errReplayed = errors.New("reference already recorded")

// ExecuteOnce is Execute for operations keyed by a client reference id. When
// the user already has a transaction carrying ref, fn is not run, nothing is
// written and that transaction is returned. An empty ref behaves like Execute.
func (l *Ledger) ExecuteOnce(ctx context.Context, userID, ref string, fn func(tx *gorm.DB) error) (Commit, *Transaction, error) {
	if ref == "" {
		commit, err := l.Execute(ctx, userID, fn)
		return commit, nil, err
	}
	var existing *Transaction
	commit, err := l.Execute(ctx, userID, func(tx *gorm.DB) error {
		t, err := l.repo.FindByReference(ctx, tx, userID, ref)
		if err != nil {
			return err
		}
		if t != nil {
			existing = t
			return errReplayed
		}
		return fn(tx)
	})
	if errors.Is(err, errReplayed) {
		return Commit{}, existing, nil
	}
	return commit, nil, err
}

func ValidateReference(ref string) error {
	if len(ref) > MaxReferenceLength {
		return serviceerrs.Invalid(fmt.Sprintf("referenceId must be at most %d characters", MaxReferenceLength))
	}
	return nil
}

// Reference returns ref as a column value; empty means none.
func Reference(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}

// EnsureFunds fails with ErrInsufficientFunds unless the available balance
// seen through tx covers amount.
func (l *Ledger) EnsureFunds(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) error {
	b, err := l.calc.Detailed(ctx, tx, userID)
	if err != nil {
		return err
	}
	if b.Available.LessThan(amount) {
		return serviceerrs.ErrInsufficientFunds
	}
	return nil
}

func (l *Ledger) Record(ctx context.Context, tx *gorm.DB, t *Transaction) error {
	return l.repo.Create(ctx, tx, t)
}

func (l *Ledger) Detailed(ctx context.Context, userID string) (DetailedBalance, error) {
	return l.calc.Detailed(ctx, nil, userID)
}

// Balance returns the cached available balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return l.cache.Get(ctx, userID)
}

// Committed reflects the change of delta to the available balance that
// commit made in the cache and returns the new balance. Cached balances of
// the other users the operation credited are dropped. When the cache cannot
// be refreshed the entry is dropped and the balance is read from the store.
func (l *Ledger) Committed(ctx context.Context, commit Commit, delta decimal.Decimal, others ...string) (decimal.Decimal, error) {
	if len(others) > 0 {
		l.cache.Invalidate(others...)
	}
	tp := TypeDeposit
	if delta.IsNegative() {
		tp = TypeWithdrawal
		delta = delta.Neg()
	}
	balance, err := l.cache.Update(ctx, commit.UserID, commit.Version, delta, tp)
	if err == nil {
		return balance, nil
	}
	l.cache.Invalidate(commit.UserID)
	b, derr := l.calc.Detailed(ctx, nil, commit.UserID)
	if derr != nil {
		return decimal.Zero, errors.Join(err, derr)
	}
	return b.Available, nil
}

func (l *Ledger) History(ctx context.Context, userID string, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	txs, total, err := l.repo.List(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	balance, err := l.calc.Detailed(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &Page{
		Transactions: txs,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
		Balance:      balance,
	}, nil
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return serviceerrs.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: at most two decimal places", serviceerrs.ErrInvalidAmount)
	}
	return nil
}
