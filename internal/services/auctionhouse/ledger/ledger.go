// Package ledger defines the escrow account and atomic value transfer
// contracts. Balances change only through these operations; a transfer
// either fully succeeds or fully fails.
package ledger

import (
	"errors"
	"time"

	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
)

var (
	// ErrNotFound indicates a referenced account is missing.
	ErrNotFound = errors.New("account not found")
	// ErrAlreadyExists indicates an account with the same id already exists.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInsufficientFunds indicates the source balance cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnauthorized indicates the authorizing identity does not control the source account.
	ErrUnauthorized = errors.New("transfer not authorized")
	// ErrAssetMismatch indicates the two accounts hold different assets.
	ErrAssetMismatch = errors.New("account asset mismatch")
)

// Account is a value container for a single asset. The owner identity is
// the only authority that can move value out of it.
type Account struct {
	ID        domain.Identity
	Owner     domain.Identity
	Asset     domain.Identity
	Balance   uint64
	CreatedAt time.Time
}

// Accounts is the escrow transfer primitive exposed inside a storage unit
// of work. Transfer moves amount from one account to another, gated by the
// authorizing identity matching the source owner; it never applies
// partially. SetAccountOwner reassigns control of an account and exists
// only for escrow assignment inside the engine, never through the API.
type Accounts interface {
	CreateAccount(account Account) error
	GetAccount(id domain.Identity) (Account, error)
	SetAccountOwner(id, owner domain.Identity) error
	Deposit(id domain.Identity, amount uint64) error
	Transfer(from, to domain.Identity, amount uint64, authorizedBy domain.Identity) error
}
