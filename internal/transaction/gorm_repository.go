package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const mysqlDuplicateEntry = 1062

type transactionRecord struct {
	ID                string          `gorm:"type:char(36);primaryKey"`
	Reference         string          `gorm:"type:varchar(191);not null;uniqueIndex:uk_transactions_reference"`
	WalletID          string          `gorm:"type:char(36);not null;index:idx_transactions_wallet_created,priority:1"`
	RecipientWalletID *string         `gorm:"type:char(36);index:idx_transactions_recipient_created,priority:1"`
	UserID            string          `gorm:"type:varchar(191);not null"`
	Type              string          `gorm:"type:varchar(16);not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Status            string          `gorm:"type:varchar(16);not null"`
	Description       string          `gorm:"type:varchar(255);not null;default:''"`
	Metadata          map[string]any  `gorm:"serializer:json;type:json"`
	CreatedAt         time.Time       `gorm:"type:datetime(6);not null;index:idx_transactions_wallet_created,priority:2;index:idx_transactions_recipient_created,priority:2"`
}

func (transactionRecord) TableName() string { return "transactions" }

func fromTransaction(t Transaction) transactionRecord {
	rec := transactionRecord{
		ID:          t.ID,
		Reference:   t.Reference,
		WalletID:    t.WalletID,
		UserID:      t.UserID,
		Type:        string(t.Type),
		Amount:      t.Amount,
		Status:      string(t.Status),
		Description: t.Description,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
	}
	if t.RecipientWalletID != "" {
		recipient := t.RecipientWalletID
		rec.RecipientWalletID = &recipient
	}
	return rec
}

func (r transactionRecord) toTransaction() Transaction {
	t := Transaction{
		ID:          r.ID,
		Reference:   r.Reference,
		WalletID:    r.WalletID,
		UserID:      r.UserID,
		Type:        Type(r.Type),
		Amount:      r.Amount,
		Status:      Status(r.Status),
		Description: r.Description,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.RecipientWalletID != nil {
		t.RecipientWalletID = *r.RecipientWalletID
	}
	return t
}

// AutoMigrate creates or updates the transactions table for gorm-backed stores.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&transactionRecord{})
}

// GormRepository stores ledger entries through gorm (MySQL).
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository builds a repository on a gorm handle or transaction.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) FindByReference(ctx context.Context, reference string) (Transaction, error) {
	var rec transactionRecord
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, fmt.Errorf("select transaction: %w", err)
	}
	return rec.toTransaction(), nil
}

func (r *GormRepository) Create(ctx context.Context, t Transaction) (Transaction, error) {
	rec := fromTransaction(t)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return Transaction{}, ErrDuplicateReference
		}
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return rec.toTransaction(), nil
}

// ListForWallet reads the count and the page in one read-only
// repeatable-read transaction.
func (r *GormRepository) ListForWallet(ctx context.Context, walletID string, page, pageSize int) ([]Transaction, int, error) {
	var (
		total int64
		recs  []transactionRecord
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := tx.Model(&transactionRecord{}).
			Where("wallet_id = ? OR recipient_wallet_id = ?", walletID, walletID)

		if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count transactions: %w", err)
		}
		if err := scope.Session(&gorm.Session{}).
			Order("created_at DESC").Order("id DESC").
			Offset((page - 1) * pageSize).Limit(pageSize).
			Find(&recs).Error; err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, err
	}

	items := make([]Transaction, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.toTransaction())
	}
	return items, int(total), nil
}

var _ Repository = (*GormRepository)(nil)
