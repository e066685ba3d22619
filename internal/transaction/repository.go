package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Repository is the append-only ledger log.
type Repository interface {
	FindByReference(ctx context.Context, reference string) (Transaction, error)
	Create(ctx context.Context, t Transaction) (Transaction, error)
	// ListForWallet returns entries where the wallet is primary or recipient,
	// newest first, plus the total count. page is 1-based.
	ListForWallet(ctx context.Context, walletID string, page, pageSize int) ([]Transaction, int, error)
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation   = "23505"
	referenceConstraint = "transactions_reference_key"
	txSelectColumns     = `id::text, reference, wallet_id::text, COALESCE(recipient_wallet_id::text, ''), user_id,
        type, amount::text, status, description, metadata, created_at`
)

// PostgresRepository stores ledger entries in PostgreSQL.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository builds a repository backed by a pool or a transaction.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByReference looks an entry up by its unique reference.
func (r *PostgresRepository) FindByReference(ctx context.Context, reference string) (Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+txSelectColumns+` FROM transactions WHERE reference = $1`, reference)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, fmt.Errorf("select transaction: %w", err)
	}
	return t, nil
}

// Create appends an entry. A reference collision yields ErrDuplicateReference.
func (r *PostgresRepository) Create(ctx context.Context, t Transaction) (Transaction, error) {
	const query = `
        INSERT INTO transactions (id, reference, wallet_id, recipient_wallet_id, user_id, type, amount, status, description, metadata, created_at)
        VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7::numeric, $8, $9, $10, $11)`
	metadata := t.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := r.db.Exec(ctx, query,
		t.ID, t.Reference, t.WalletID, t.RecipientWalletID, t.UserID,
		string(t.Type), t.Amount.String(), string(t.Status), t.Description, metadata, t.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == referenceConstraint {
			return Transaction{}, ErrDuplicateReference
		}
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// snapshotBeginner is implemented by *pgxpool.Pool. A pgx.Tx is already a
// snapshot boundary and does not implement it.
type snapshotBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// ListForWallet pages through a wallet's entries, newest first. The count and
// the page are read from one repeatable-read snapshot.
func (r *PostgresRepository) ListForWallet(ctx context.Context, walletID string, page, pageSize int) ([]Transaction, int, error) {
	beginner, ok := r.db.(snapshotBeginner)
	if !ok {
		return listForWallet(ctx, r.db, walletID, page, pageSize)
	}

	tx, err := beginner.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("begin history read: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	items, total, err := listForWallet(ctx, tx, walletID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit history read: %w", err)
	}
	return items, total, nil
}

func listForWallet(ctx context.Context, db DBTX, walletID string, page, pageSize int) ([]Transaction, int, error) {
	var total int
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE wallet_id = $1 OR recipient_wallet_id = $1`, walletID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := db.Query(ctx, `SELECT `+txSelectColumns+` FROM transactions
        WHERE wallet_id = $1 OR recipient_wallet_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`, walletID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := make([]Transaction, 0, pageSize)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return items, total, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t              Transaction
		txType, status string
		amount         string
	)
	if err := row.Scan(&t.ID, &t.Reference, &t.WalletID, &t.RecipientWalletID, &t.UserID,
		&txType, &amount, &status, &t.Description, &t.Metadata, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("decode amount: %w", err)
	}
	t.Amount = parsed
	t.Type = Type(txType)
	t.Status = Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

var _ Repository = (*PostgresRepository)(nil)
