// Package storage defines persistence contracts for auction house state.
package storage

import (
	"context"
	"errors"

	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/ledger"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// Tx is one unit of work over records and escrow accounts. Create
// operations reject existing keys, preserving the one-record-per-key
// invariant. All mutations inside a Tx commit or roll back together.
type Tx interface {
	CreateHouse(house domain.House) error
	GetHouse(id domain.Identity) (domain.House, error)

	CreateAuction(auction domain.Auction) error
	GetAuction(id domain.Identity) (domain.Auction, error)
	UpdateAuction(auction domain.Auction) error

	CreateBid(bid domain.Bid) error
	GetBid(auctionID, bidder domain.Identity) (domain.Bid, error)

	ledger.Accounts
}

// Store provides serialized, all-or-nothing units of work. Update holds
// the store's write lock for the duration of fn, so two operations against
// the same auction never interleave.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}
