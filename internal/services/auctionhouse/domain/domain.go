// Package domain defines the auction house record types and status machine.
package domain

// Identity is an opaque principal reference used for authorization checks.
// Record identifiers share the same representation because derived records
// (house configs, auctions) act as authorities in their own right.
type Identity string

// Seed prefixes for derived record addresses.
const (
	SeedHouse            = "auction_house"
	SeedHouseFeeAccount  = "auction_house_fee_account"
	SeedHouseTreasury    = "auction_house_treasury"
	SeedAuction          = "auction"
	SeedAuctionAuthority = "auction_authority"
	SeedBid              = "bid"
)
