package domain

import (
	"strings"
	"time"

	apperrors "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/errors"
)

// Auction holds one sealed-progression auction record. One auction exists
// per (asset, seller authority) pair. CurrentPrice starts at MinimumPrice
// and only rises; HighestBidder is empty until the first successful bid.
type Auction struct {
	ID               Identity
	Authority        Identity
	AssetID          Identity
	AssetAccount     Identity
	TreasuryCurrency Identity
	TokenSize        uint64
	MinimumPrice     uint64
	CurrentPrice     uint64
	EndTime          time.Time
	HighestBidder    Identity // empty when no bid has been placed
	Status           Status
	Salt             byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateAuctionInput describes what a seller provides to open an auction.
type CreateAuctionInput struct {
	AssetID            Identity
	SellerAssetAccount Identity
	TreasuryCurrency   Identity
	TokenSize          uint64
	MinimumPrice       uint64
	EndTime            time.Time
}

// NormalizeCreateAuctionInput trims and validates auction creation input.
// EndTime is required but not checked against the current time, matching
// the reference behavior.
func NormalizeCreateAuctionInput(input CreateAuctionInput) (CreateAuctionInput, error) {
	input.AssetID = Identity(strings.TrimSpace(string(input.AssetID)))
	input.SellerAssetAccount = Identity(strings.TrimSpace(string(input.SellerAssetAccount)))
	input.TreasuryCurrency = Identity(strings.TrimSpace(string(input.TreasuryCurrency)))
	if input.AssetID == "" {
		return CreateAuctionInput{}, apperrors.New(apperrors.CodeAuctionAssetRequired, "asset id is required")
	}
	if input.SellerAssetAccount == "" {
		return CreateAuctionInput{}, apperrors.New(apperrors.CodeAuctionAssetAccountRequired, "seller asset account is required")
	}
	if input.TreasuryCurrency == "" {
		return CreateAuctionInput{}, apperrors.New(apperrors.CodeAuctionTreasuryCurrencyRequired, "treasury currency is required")
	}
	if input.EndTime.IsZero() {
		return CreateAuctionInput{}, apperrors.New(apperrors.CodeAuctionEndTimeRequired, "end time is required")
	}
	return input, nil
}

// PlaceBidInput describes what a bidder provides to place a bid.
type PlaceBidInput struct {
	AuctionID             Identity
	BidderCurrencyAccount Identity
	AuctionEscrowAccount  Identity
	Amount                uint64
}

// NormalizePlaceBidInput trims and validates bid placement input.
func NormalizePlaceBidInput(input PlaceBidInput) (PlaceBidInput, error) {
	input.AuctionID = Identity(strings.TrimSpace(string(input.AuctionID)))
	input.BidderCurrencyAccount = Identity(strings.TrimSpace(string(input.BidderCurrencyAccount)))
	input.AuctionEscrowAccount = Identity(strings.TrimSpace(string(input.AuctionEscrowAccount)))
	if input.AuctionID == "" {
		return PlaceBidInput{}, apperrors.New(apperrors.CodeNotFound, "auction id is required")
	}
	if input.BidderCurrencyAccount == "" {
		return PlaceBidInput{}, apperrors.New(apperrors.CodeBidAccountRequired, "bidder currency account is required")
	}
	if input.AuctionEscrowAccount == "" {
		return PlaceBidInput{}, apperrors.New(apperrors.CodeBidEscrowAccountRequired, "auction escrow account is required")
	}
	return input, nil
}

// EndAuctionInput describes what an end-auction caller provides.
type EndAuctionInput struct {
	AuctionID           Identity
	AuctionAssetAccount Identity
	WinnerAssetAccount  Identity
}

// CancelAuctionInput describes what a cancel-auction caller provides.
type CancelAuctionInput struct {
	AuctionID           Identity
	AuctionAssetAccount Identity
	SellerAssetAccount  Identity
}
