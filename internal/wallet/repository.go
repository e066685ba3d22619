package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Repository persists wallets. Implementations bound to a unit of work see
// that unit's uncommitted writes.
type Repository interface {
	GetByID(ctx context.Context, id string) (Wallet, error)
	GetByUserID(ctx context.Context, userID string) (Wallet, error)
	GetByToken(ctx context.Context, token string) (Wallet, error)
	// LockByID reads the wallet and holds a row lock until the unit of work ends.
	LockByID(ctx context.Context, id string) (Wallet, error)
	Create(ctx context.Context, w Wallet) (Wallet, error)
	// AdjustBalance adds delta to the balance in one statement and returns the
	// new balance. It refuses to leave the balance negative.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation   = "23505"
	pgInvalidTextRep    = "22P02"
	userIDConstraint    = "wallets_user_id_key"
	tokenConstraint     = "wallets_token_key"
	walletSelectColumns = `id::text, user_id, account_name, token, balance::text, currency, created_at, updated_at`
)

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository builds a repository backed by a pool or a transaction.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID fetches a wallet by identifier.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Wallet, error) {
	return r.getOne(ctx, `SELECT `+walletSelectColumns+` FROM wallets WHERE id = $1`, id)
}

// GetByUserID fetches the wallet owned by userID.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (Wallet, error) {
	return r.getOne(ctx, `SELECT `+walletSelectColumns+` FROM wallets WHERE user_id = $1`, userID)
}

// GetByToken fetches the wallet addressed by an account token.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (Wallet, error) {
	return r.getOne(ctx, `SELECT `+walletSelectColumns+` FROM wallets WHERE token = $1`, token)
}

// LockByID fetches a wallet with SELECT ... FOR UPDATE.
func (r *PostgresRepository) LockByID(ctx context.Context, id string) (Wallet, error) {
	return r.getOne(ctx, `SELECT `+walletSelectColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) (Wallet, error) {
	const query = `
        INSERT INTO wallets (id, user_id, account_name, token, balance, currency, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, w.ID, w.UserID, w.AccountName, w.Token, w.Balance.String(), w.Currency, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			switch pgErr.ConstraintName {
			case userIDConstraint:
				return Wallet{}, ErrAlreadyExists
			case tokenConstraint:
				return Wallet{}, ErrTokenTaken
			}
		}
		return Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	return w, nil
}

// AdjustBalance applies delta guarded by balance + delta >= 0.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	const query = `
        UPDATE wallets
        SET balance = balance + $1::numeric, updated_at = now()
        WHERE id = $2 AND balance + $1::numeric >= 0
        RETURNING balance::text`
	var raw string
	if err := r.db.QueryRow(ctx, query, delta.String(), id).Scan(&raw); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("adjust balance: %w", err)
		}
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return decimal.Decimal{}, getErr
		}
		return decimal.Decimal{}, ErrNegativeBalance
	}
	return decimal.NewFromString(raw)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (Wallet, error) {
	var (
		w       Wallet
		balance string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&w.ID, &w.UserID, &w.AccountName, &w.Token, &balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRep) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, fmt.Errorf("select wallet: %w", err)
	}
	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return Wallet{}, fmt.Errorf("decode balance: %w", err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

var _ Repository = (*PostgresRepository)(nil)

func nowUTC() time.Time { return time.Now().UTC() }
