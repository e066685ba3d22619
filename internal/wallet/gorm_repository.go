package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mysqlDuplicateEntry = 1062

// walletRecord is the gorm mapping of the wallets table.
type walletRecord struct {
	ID          string          `gorm:"type:char(36);primaryKey"`
	UserID      string          `gorm:"type:varchar(191);not null;uniqueIndex:uk_wallets_user_id"`
	AccountName string          `gorm:"type:varchar(191);not null"`
	Token       string          `gorm:"type:varchar(32);not null;uniqueIndex:uk_wallets_token"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Currency    string          `gorm:"type:char(3);not null;default:'USD'"`
	CreatedAt   time.Time       `gorm:"type:datetime(6);not null"`
	UpdatedAt   time.Time       `gorm:"type:datetime(6);not null"`
}

func (walletRecord) TableName() string { return "wallets" }

func (r walletRecord) toWallet() Wallet {
	return Wallet{
		ID:          r.ID,
		UserID:      r.UserID,
		AccountName: r.AccountName,
		Token:       r.Token,
		Balance:     r.Balance,
		Currency:    r.Currency,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// AutoMigrate creates or updates the wallets table for gorm-backed stores.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&walletRecord{})
}

// GormRepository stores wallets through gorm (MySQL).
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository builds a repository on a gorm handle or transaction.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetByID(ctx context.Context, id string) (Wallet, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *GormRepository) GetByUserID(ctx context.Context, userID string) (Wallet, error) {
	return r.first(r.db.WithContext(ctx), "user_id = ?", userID)
}

func (r *GormRepository) GetByToken(ctx context.Context, token string) (Wallet, error) {
	return r.first(r.db.WithContext(ctx), "token = ?", token)
}

func (r *GormRepository) LockByID(ctx context.Context, id string) (Wallet, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *GormRepository) Create(ctx context.Context, w Wallet) (Wallet, error) {
	rec := walletRecord{
		ID:          w.ID,
		UserID:      w.UserID,
		AccountName: w.AccountName,
		Token:       w.Token,
		Balance:     w.Balance,
		Currency:    w.Currency,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			if strings.Contains(myErr.Message, "uk_wallets_token") {
				return Wallet{}, ErrTokenTaken
			}
			return Wallet{}, ErrAlreadyExists
		}
		return Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	return rec.toWallet(), nil
}

func (r *GormRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&walletRecord{}).
		Where("id = ? AND balance + ? >= 0", id, delta).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return decimal.Decimal{}, fmt.Errorf("adjust balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.Decimal{}, ErrNegativeBalance
	}
	w, err := r.GetByID(ctx, id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return w.Balance, nil
}

func (r *GormRepository) first(db *gorm.DB, cond string, arg string) (Wallet, error) {
	var rec walletRecord
	if err := db.Where(cond, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, fmt.Errorf("select wallet: %w", err)
	}
	return rec.toWallet(), nil
}

var _ Repository = (*GormRepository)(nil)
