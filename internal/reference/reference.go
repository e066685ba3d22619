// Package reference mints ledger transaction references and wallet account
// tokens.
//
// Transaction references are "TRNX-" followed by a ULID: a 48-bit millisecond
// timestamp and 80 bits read from crypto/rand. Two references minted in the
// same millisecond collide with probability at most 2^-80. Account tokens are
// ten decimal digits and are NOT collision free; the wallet store's unique
// index is the safety net.
package reference

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// TransactionPrefix starts every engine-minted transaction reference.
	TransactionPrefix = "TRNX-"
	// CreditLegSuffix is appended to a transfer's base reference for the recipient leg.
	CreditLegSuffix = "_CREDIT"

	tokenMin = 1_000_000_000
	tokenMax = 9_999_999_999
)

var tokenSpan = big.NewInt(tokenMax - tokenMin + 1)

// Generator mints references. Implementations must be safe for concurrent use.
type Generator interface {
	TransactionReference() string
	AccountToken() (string, error)
}

// Default is the production Generator.
type Default struct {
	now func() time.Time
}

// New returns the production Generator.
func New() Default {
	return Default{now: time.Now}
}

// TransactionReference returns a new "TRNX-<ULID>" reference.
func (g Default) TransactionReference() string {
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	// crypto/rand.Reader is safe for concurrent use, so no entropy lock is needed.
	id := ulid.MustNew(ulid.Timestamp(now()), rand.Reader)
	return TransactionPrefix + id.String()
}

// AccountToken returns a random ten digit account token.
func (Default) AccountToken() (string, error) {
	n, err := rand.Int(rand.Reader, tokenSpan)
	if err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+tokenMin), nil
}

// CreditLegReference derives the recipient leg reference of a transfer from its base reference.
func CreditLegReference(base string) string {
	return base + CreditLegSuffix
}
