package ledger

import (
	"errors"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

var (
	// ErrInvalidAmount is returned for non-positive, oversized or sub-cent amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput is returned for malformed references, tokens or paging parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientFunds occurs when the sender's balance cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSelfTransfer is returned when sender and recipient are the same wallet.
	ErrSelfTransfer = errors.New("cannot transfer to own wallet")
	// ErrStoreConflict is a transient isolation failure, timeout or deadlock.
	// The unit of work was rolled back and may be retried.
	ErrStoreConflict = errors.New("store conflict")

	// ErrDuplicateReference aliases the ledger log's duplicate reference error.
	ErrDuplicateReference = transaction.ErrDuplicateReference
)

// Kind classifies an error returned by the ledger and its stores.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidAmount
	KindInvalidInput
	KindDuplicateReference
	KindNotFound
	KindAlreadyExists
	KindInsufficientFunds
	KindSelfTransfer
	KindStoreConflict
	KindUnexpected
)

var kindNames = map[Kind]string{
	KindNone:               "ok",
	KindInvalidAmount:      "invalid_amount",
	KindInvalidInput:       "invalid_input",
	KindDuplicateReference: "duplicate_reference",
	KindNotFound:           "not_found",
	KindAlreadyExists:      "already_exists",
	KindInsufficientFunds:  "insufficient_funds",
	KindSelfTransfer:       "self_transfer",
	KindStoreConflict:      "store_conflict",
	KindUnexpected:         "unexpected",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unexpected"
}

// KindOf maps err onto the ledger error taxonomy. nil maps to KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStoreConflict), errors.Is(err, wallet.ErrTokenTaken):
		return KindStoreConflict
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidInput), errors.Is(err, wallet.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, transaction.ErrDuplicateReference):
		return KindDuplicateReference
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, transaction.ErrNotFound):
		return KindNotFound
	case errors.Is(err, wallet.ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, wallet.ErrNegativeBalance):
		return KindInsufficientFunds
	case errors.Is(err, ErrSelfTransfer):
		return KindSelfTransfer
	default:
		return KindUnexpected
	}
}
