package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"casino_wallet/internal/serviceerrs"
	"casino_wallet/internal/storage"
)

var (
	ErrTransactionNotFound = fmt.Errorf("transaction %w", serviceerrs.ErrNotFound)
	ErrDuplicateReference  = fmt.Errorf("reference id %w", serviceerrs.ErrConflict)
	ErrReferenceReused     = fmt.Errorf("reference id was used for a different operation: %w", serviceerrs.ErrConflict)
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LockAccount creates the user's ledger head if needed and holds a row lock
// on it until tx ends.
func (r *Repository) LockAccount(ctx context.Context, tx *gorm.DB, userID string) (*Account, error) {
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Account{UserID: userID, UpdatedAt: time.Now()}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure ledger account: %w", err)
	}

	var acct Account
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&acct).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger account: %w", err)
	}
	return &acct, nil
}

// Touch bumps the head version so concurrent readers can see the account moved.
func (r *Repository) Touch(ctx context.Context, tx *gorm.DB, userID string) error {
	err := tx.WithContext(ctx).
		Model(&Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to bump ledger account: %w", err)
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, t *Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		if t.ReferenceID != nil && storage.IsUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// FindByReference returns the user's transaction carrying ref, or nil.
func (r *Repository) FindByReference(ctx context.Context, tx *gorm.DB, userID, ref string) (*Transaction, error) {
	var txs []Transaction
	err := tx.WithContext(ctx).
		Where("user_id = ? AND reference_id = ?", userID, ref).
		Limit(1).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction by reference: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func (r *Repository) Get(ctx context.Context, tx *gorm.DB, id string) (*Transaction, error) {
	var t Transaction
	err := tx.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status Status) error {
	result := tx.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, tx *gorm.DB, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Delete(&Transaction{}).Error; err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

// GroupTotals sums a user's history per (status, type).
func (r *Repository) GroupTotals(ctx context.Context, tx *gorm.DB, userID string) ([]GroupTotal, error) {
	var rows []GroupTotal
	err := tx.WithContext(ctx).
		Model(&Transaction{}).
		Select("status, type, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("status, type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	return rows, nil
}

func (r *Repository) List(ctx context.Context, userID string, page, pageSize int) ([]Transaction, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&Transaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var txs []Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, total, nil
}
