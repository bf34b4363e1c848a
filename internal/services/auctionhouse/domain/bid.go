package domain

import "time"

// Bid records one bidder's escrowed bid on one auction. At most one bid
// exists per (auction, bidder) pair and the record is immutable once
// created.
type Bid struct {
	ID        Identity
	AuctionID Identity
	Bidder    Identity
	Amount    uint64
	PlacedAt  time.Time
}
