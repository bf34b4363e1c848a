package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/errors"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/storage/sqlite"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "auctionhouse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	e := New(store)
	e.clock = func() time.Time { return baseTime }
	return e
}

func setClock(e *Engine, at time.Time) {
	e.clock = func() time.Time { return at }
}

// fixture wires up a seller with an escrowed asset, a funded bidder, and
// an active auction ending one hour after baseTime.
type fixture struct {
	seller  domain.Identity
	bidder  domain.Identity
	asset   domain.Identity
	coin    domain.Identity
	auction domain.Auction

	sellerAssetAccount domain.Identity
	escrowCoinAccount  domain.Identity
	bidderCoinAccount  domain.Identity
	winnerAssetAccount domain.Identity
}

func newFixture(t *testing.T, e *Engine) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{
		seller: "seller-1",
		bidder: "bidder-1",
		asset:  "asset-sword",
		coin:   "coin-gold",
	}

	f.sellerAssetAccount = mustAccount(t, e, f.seller, f.asset, 1)
	f.escrowCoinAccount = mustAccount(t, e, f.seller, f.coin, 0)
	f.bidderCoinAccount = mustAccount(t, e, f.bidder, f.coin, 1_000)
	f.winnerAssetAccount = mustAccount(t, e, f.bidder, f.asset, 0)

	auction, err := e.CreateAuction(ctx, f.seller, domain.CreateAuctionInput{
		AssetID:            f.asset,
		SellerAssetAccount: f.sellerAssetAccount,
		TreasuryCurrency:   f.coin,
		TokenSize:          1,
		MinimumPrice:       100,
		EndTime:            baseTime.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	f.auction = auction
	return f
}

func mustAccount(t *testing.T, e *Engine, owner, asset domain.Identity, balance uint64) domain.Identity {
	t.Helper()
	ctx := context.Background()
	account, err := e.CreateAccount(ctx, owner, asset)
	if err != nil {
		t.Fatalf("create account for %s: %v", owner, err)
	}
	if balance > 0 {
		if _, err := e.Deposit(ctx, owner, account.ID, balance); err != nil {
			t.Fatalf("deposit into %s: %v", account.ID, err)
		}
	}
	return account.ID
}

func mustBalance(t *testing.T, e *Engine, id domain.Identity) uint64 {
	t.Helper()
	account, err := e.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return account.Balance
}

func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("want error code %s, got nil", code)
	}
	if got := apperrors.GetCode(err); got != code {
		t.Fatalf("want error code %s, got %s (%v)", code, got, err)
	}
}

func TestConfigureHouse(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()

	house, err := e.ConfigureHouse(ctx, "authority-1", domain.ConfigureHouseInput{
		TreasuryCurrency:         "coin-gold",
		FeeWithdrawalDestination: "authority-1-wallet",
		SellerFeeBasisPoints:     250,
	})
	if err != nil {
		t.Fatalf("configure house: %v", err)
	}
	if house.Authority != "authority-1" {
		t.Errorf("authority = %s, want authority-1", house.Authority)
	}
	if house.ID == "" || house.FeeAccount == "" || house.TreasuryAccount == "" {
		t.Errorf("derived identities missing: %+v", house)
	}

	got, err := e.GetHouse(ctx, house.ID)
	if err != nil {
		t.Fatalf("get house: %v", err)
	}
	if got != house {
		t.Errorf("stored house = %+v, want %+v", got, house)
	}

	// Escrow accounts exist, start empty, and are controlled by the house.
	for _, accountID := range []domain.Identity{house.FeeAccount, house.TreasuryAccount} {
		account, err := e.GetAccount(ctx, accountID)
		if err != nil {
			t.Fatalf("get escrow account %s: %v", accountID, err)
		}
		if account.Balance != 0 {
			t.Errorf("account %s balance = %d, want 0", accountID, account.Balance)
		}
		if account.Owner != house.ID {
			t.Errorf("account %s owner = %s, want %s", accountID, account.Owner, house.ID)
		}
	}
}

func TestConfigureHouseTwiceFails(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()
	input := domain.ConfigureHouseInput{
		TreasuryCurrency:         "coin-gold",
		FeeWithdrawalDestination: "wallet",
	}

	if _, err := e.ConfigureHouse(ctx, "authority-1", input); err != nil {
		t.Fatalf("first configure: %v", err)
	}
	_, err := e.ConfigureHouse(ctx, "authority-1", input)
	wantCode(t, err, apperrors.CodeHouseAlreadyExists)
}

func TestConfigureHouseAcceptsOutOfRangeFee(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	house, err := e.ConfigureHouse(context.Background(), "authority-1", domain.ConfigureHouseInput{
		TreasuryCurrency:         "coin-gold",
		FeeWithdrawalDestination: "wallet",
		SellerFeeBasisPoints:     60_000,
	})
	if err != nil {
		t.Fatalf("configure house: %v", err)
	}
	if house.SellerFeeBasisPoints != 60_000 {
		t.Errorf("fee = %d, want 60000 stored as provided", house.SellerFeeBasisPoints)
	}
}

func TestCreateAuction(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	if f.auction.Status != domain.StatusActive {
		t.Errorf("status = %s, want %s", f.auction.Status, domain.StatusActive)
	}
	if f.auction.CurrentPrice != f.auction.MinimumPrice {
		t.Errorf("current price = %d, want minimum %d", f.auction.CurrentPrice, f.auction.MinimumPrice)
	}
	if f.auction.HighestBidder != "" {
		t.Errorf("highest bidder = %s, want empty", f.auction.HighestBidder)
	}

	// The asset account is escrowed under the auction's derived authority,
	// out of the seller's direct control.
	account, err := e.GetAccount(ctx, f.sellerAssetAccount)
	if err != nil {
		t.Fatalf("get asset account: %v", err)
	}
	if account.Owner == f.seller {
		t.Error("asset account still owned by seller after auction creation")
	}
}

func TestCreateAuctionRejectsForeignAccount(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()

	otherAccount := mustAccount(t, e, "someone-else", "asset-sword", 1)
	_, err := e.CreateAuction(ctx, "seller-1", domain.CreateAuctionInput{
		AssetID:            "asset-sword",
		SellerAssetAccount: otherAccount,
		TreasuryCurrency:   "coin-gold",
		TokenSize:          1,
		MinimumPrice:       100,
		EndTime:            baseTime.Add(time.Hour),
	})
	wantCode(t, err, apperrors.CodeAccountOwnerMismatch)
}

func TestCreateAuctionRejectsWrongAsset(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()

	coinAccount := mustAccount(t, e, "seller-1", "coin-gold", 1)
	_, err := e.CreateAuction(ctx, "seller-1", domain.CreateAuctionInput{
		AssetID:            "asset-sword",
		SellerAssetAccount: coinAccount,
		TreasuryCurrency:   "coin-gold",
		TokenSize:          1,
		MinimumPrice:       100,
		EndTime:            baseTime.Add(time.Hour),
	})
	wantCode(t, err, apperrors.CodeAccountAssetMismatch)
}

func TestCreateAuctionDuplicateFails(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	// Same asset, same seller, fresh account. The (asset, seller) pair is
	// already taken.
	account := mustAccount(t, e, f.seller, f.asset, 1)
	_, err := e.CreateAuction(ctx, f.seller, domain.CreateAuctionInput{
		AssetID:            f.asset,
		SellerAssetAccount: account,
		TreasuryCurrency:   f.coin,
		TokenSize:          1,
		MinimumPrice:       50,
		EndTime:            baseTime.Add(time.Hour),
	})
	wantCode(t, err, apperrors.CodeAuctionAlreadyExists)
}

func TestCreateAuctionAllowsPastEndTime(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, e, "seller-1", "asset-sword", 1)
	auction, err := e.CreateAuction(ctx, "seller-1", domain.CreateAuctionInput{
		AssetID:            "asset-sword",
		SellerAssetAccount: account,
		TreasuryCurrency:   "coin-gold",
		TokenSize:          1,
		MinimumPrice:       100,
		EndTime:            baseTime.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create auction with past end time: %v", err)
	}
	if auction.Status != domain.StatusActive {
		t.Errorf("status = %s, want %s", auction.Status, domain.StatusActive)
	}
}

func TestPlaceBid(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	bid, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: f.bidderCoinAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                150,
	})
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if bid.Amount != 150 || bid.Bidder != f.bidder {
		t.Errorf("bid = %+v", bid)
	}

	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.CurrentPrice != 150 {
		t.Errorf("current price = %d, want 150", auction.CurrentPrice)
	}
	if auction.HighestBidder != f.bidder {
		t.Errorf("highest bidder = %s, want %s", auction.HighestBidder, f.bidder)
	}
	if got := mustBalance(t, e, f.bidderCoinAccount); got != 850 {
		t.Errorf("bidder balance = %d, want 850", got)
	}
	if got := mustBalance(t, e, f.escrowCoinAccount); got != 150 {
		t.Errorf("escrow balance = %d, want 150", got)
	}
}

func TestPlaceBidTooLow(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	// Minimum price is 100. Matching it exactly is not enough.
	for _, amount := range []uint64{0, 50, 100} {
		_, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
			AuctionID:             f.auction.ID,
			BidderCurrencyAccount: f.bidderCoinAccount,
			AuctionEscrowAccount:  f.escrowCoinAccount,
			Amount:                amount,
		})
		wantCode(t, err, apperrors.CodeBidTooLow)
	}
	if got := mustBalance(t, e, f.bidderCoinAccount); got != 1_000 {
		t.Errorf("bidder balance = %d, want untouched 1000", got)
	}
}

func TestPlaceBidPriceMonotonicity(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	bidders := []struct {
		identity domain.Identity
		amount   uint64
	}{
		{"bidder-1", 150},
		{"bidder-2", 151},
		{"bidder-3", 500},
	}
	accounts := map[domain.Identity]domain.Identity{"bidder-1": f.bidderCoinAccount}
	accounts["bidder-2"] = mustAccount(t, e, "bidder-2", f.coin, 1_000)
	accounts["bidder-3"] = mustAccount(t, e, "bidder-3", f.coin, 1_000)

	price := f.auction.CurrentPrice
	for _, b := range bidders {
		if _, err := e.PlaceBid(ctx, b.identity, domain.PlaceBidInput{
			AuctionID:             f.auction.ID,
			BidderCurrencyAccount: accounts[b.identity],
			AuctionEscrowAccount:  f.escrowCoinAccount,
			Amount:                b.amount,
		}); err != nil {
			t.Fatalf("bid %d by %s: %v", b.amount, b.identity, err)
		}
		auction, err := e.GetAuction(ctx, f.auction.ID)
		if err != nil {
			t.Fatalf("get auction: %v", err)
		}
		if auction.CurrentPrice <= price {
			t.Fatalf("price did not rise: %d -> %d", price, auction.CurrentPrice)
		}
		price = auction.CurrentPrice
		if auction.HighestBidder != b.identity {
			t.Errorf("highest bidder = %s, want %s", auction.HighestBidder, b.identity)
		}
	}

	// A re-bid below the new price fails even though it beat the minimum.
	_, err := e.PlaceBid(ctx, "bidder-4", domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: mustAccount(t, e, "bidder-4", f.coin, 1_000),
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                200,
	})
	wantCode(t, err, apperrors.CodeBidTooLow)
}

func TestPlaceBidTwiceFails(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	input := domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: f.bidderCoinAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                150,
	}
	if _, err := e.PlaceBid(ctx, f.bidder, input); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	input.Amount = 300
	_, err := e.PlaceBid(ctx, f.bidder, input)
	wantCode(t, err, apperrors.CodeBidAlreadyPlaced)
}

func TestPlaceBidInsufficientFunds(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	_, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: f.bidderCoinAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                5_000,
	})
	wantCode(t, err, apperrors.CodeInsufficientFunds)

	// The failed transfer left no partial state behind.
	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.CurrentPrice != 100 || auction.HighestBidder != "" {
		t.Errorf("auction mutated by failed bid: %+v", auction)
	}
	if got := mustBalance(t, e, f.escrowCoinAccount); got != 0 {
		t.Errorf("escrow balance = %d, want 0", got)
	}
}

func TestPlaceBidWrongCurrency(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	silverAccount := mustAccount(t, e, f.bidder, "coin-silver", 1_000)
	_, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: silverAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                150,
	})
	wantCode(t, err, apperrors.CodeAccountCurrencyMismatch)
}

func TestPlaceBidOnCancelledAuction(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	returnAccount := mustAccount(t, e, f.seller, f.asset, 0)
	if err := e.CancelAuction(ctx, f.seller, domain.CancelAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		SellerAssetAccount:  returnAccount,
	}); err != nil {
		t.Fatalf("cancel auction: %v", err)
	}

	_, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: f.bidderCoinAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                150,
	})
	wantCode(t, err, apperrors.CodeAuctionNotActive)

	// Terminal state is untouched by the rejected bid.
	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.Status != domain.StatusCancelled || auction.HighestBidder != "" || auction.CurrentPrice != 100 {
		t.Errorf("auction mutated after cancel: %+v", auction)
	}
}

func TestPlaceBidAfterDeadline(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	setClock(e, f.auction.EndTime.Add(time.Minute))
	_, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: f.bidderCoinAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                150,
	})
	wantCode(t, err, apperrors.CodeAuctionEnded)
}

func TestEndAuctionBeforeDeadline(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)

	err := e.EndAuction(context.Background(), domain.EndAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		WinnerAssetAccount:  f.winnerAssetAccount,
	})
	wantCode(t, err, apperrors.CodeAuctionNotEnded)
}

func TestEndAuctionWithWinner(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	if _, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: f.bidderCoinAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                150,
	}); err != nil {
		t.Fatalf("place bid: %v", err)
	}

	setClock(e, f.auction.EndTime)
	if err := e.EndAuction(ctx, domain.EndAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		WinnerAssetAccount:  f.winnerAssetAccount,
	}); err != nil {
		t.Fatalf("end auction: %v", err)
	}

	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.Status != domain.StatusEnded {
		t.Errorf("status = %s, want %s", auction.Status, domain.StatusEnded)
	}
	if got := mustBalance(t, e, f.winnerAssetAccount); got != 1 {
		t.Errorf("winner asset balance = %d, want 1", got)
	}
	if got := mustBalance(t, e, f.sellerAssetAccount); got != 0 {
		t.Errorf("auction asset account balance = %d, want 0", got)
	}
}

func TestEndAuctionTwiceFails(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	setClock(e, f.auction.EndTime)
	input := domain.EndAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		WinnerAssetAccount:  f.winnerAssetAccount,
	}
	if err := e.EndAuction(ctx, input); err != nil {
		t.Fatalf("first end: %v", err)
	}
	err := e.EndAuction(ctx, input)
	wantCode(t, err, apperrors.CodeAuctionNotActive)
}

func TestEndAuctionNoBids(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	setClock(e, f.auction.EndTime)
	if err := e.EndAuction(ctx, domain.EndAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
	}); err != nil {
		t.Fatalf("end auction without bids: %v", err)
	}

	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.Status != domain.StatusEnded {
		t.Errorf("status = %s, want %s", auction.Status, domain.StatusEnded)
	}
	// No disposition path exists for the unsold asset. It remains in the
	// escrowed account under the auction authority.
	if got := mustBalance(t, e, f.sellerAssetAccount); got != 1 {
		t.Errorf("escrowed asset balance = %d, want 1", got)
	}
}

func TestCancelAuction(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	returnAccount := mustAccount(t, e, f.seller, f.asset, 0)
	if err := e.CancelAuction(ctx, f.seller, domain.CancelAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		SellerAssetAccount:  returnAccount,
	}); err != nil {
		t.Fatalf("cancel auction: %v", err)
	}

	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want %s", auction.Status, domain.StatusCancelled)
	}
	if got := mustBalance(t, e, returnAccount); got != 1 {
		t.Errorf("returned asset balance = %d, want 1", got)
	}
}

func TestCancelAuctionUnauthorized(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)

	err := e.CancelAuction(context.Background(), f.bidder, domain.CancelAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		SellerAssetAccount:  f.sellerAssetAccount,
	})
	wantCode(t, err, apperrors.CodeUnauthorized)
}

func TestCancelAuctionTwiceFails(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	returnAccount := mustAccount(t, e, f.seller, f.asset, 0)
	input := domain.CancelAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		SellerAssetAccount:  returnAccount,
	}
	if err := e.CancelAuction(ctx, f.seller, input); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	err := e.CancelAuction(ctx, f.seller, input)
	wantCode(t, err, apperrors.CodeAuctionNotActive)
}

func TestCancelAfterEndFails(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	setClock(e, f.auction.EndTime)
	if err := e.EndAuction(ctx, domain.EndAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
	}); err != nil {
		t.Fatalf("end auction: %v", err)
	}

	err := e.CancelAuction(ctx, f.seller, domain.CancelAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		SellerAssetAccount:  f.sellerAssetAccount,
	})
	wantCode(t, err, apperrors.CodeAuctionNotActive)
}

// TestExpiredAuctionLateTraffic walks the minute-past-deadline scenario: a
// late bid is rejected, end succeeds, and a second end is rejected because
// the auction is no longer active.
func TestExpiredAuctionLateTraffic(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	if _, err := e.PlaceBid(ctx, f.bidder, domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: f.bidderCoinAccount,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                150,
	}); err != nil {
		t.Fatalf("bid before deadline: %v", err)
	}

	// A later but lower bid loses while the auction is still open.
	under := mustAccount(t, e, "bidder-under", f.coin, 1_000)
	_, err := e.PlaceBid(ctx, "bidder-under", domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: under,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                120,
	})
	wantCode(t, err, apperrors.CodeBidTooLow)

	setClock(e, f.auction.EndTime.Add(time.Minute))

	late := mustAccount(t, e, "bidder-late", f.coin, 1_000)
	_, err = e.PlaceBid(ctx, "bidder-late", domain.PlaceBidInput{
		AuctionID:             f.auction.ID,
		BidderCurrencyAccount: late,
		AuctionEscrowAccount:  f.escrowCoinAccount,
		Amount:                500,
	})
	wantCode(t, err, apperrors.CodeAuctionEnded)

	endInput := domain.EndAuctionInput{
		AuctionID:           f.auction.ID,
		AuctionAssetAccount: f.sellerAssetAccount,
		WinnerAssetAccount:  f.winnerAssetAccount,
	}
	if err := e.EndAuction(ctx, endInput); err != nil {
		t.Fatalf("end after deadline: %v", err)
	}
	wantCode(t, e.EndAuction(ctx, endInput), apperrors.CodeAuctionNotActive)

	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.HighestBidder != f.bidder || auction.CurrentPrice != 150 {
		t.Errorf("final auction = %+v", auction)
	}
	if got := mustBalance(t, e, f.winnerAssetAccount); got != 1 {
		t.Errorf("winner asset balance = %d, want 1", got)
	}
}

// TestConcurrentEqualBids races two bidders offering the same amount.
// Exactly one bid wins; the loser observes the committed price and fails
// the strictly-greater check.
func TestConcurrentEqualBids(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	otherCoinAccount := mustAccount(t, e, "bidder-2", f.coin, 1_000)

	type attempt struct {
		bidder  domain.Identity
		account domain.Identity
		err     error
	}
	attempts := []*attempt{
		{bidder: f.bidder, account: f.bidderCoinAccount},
		{bidder: "bidder-2", account: otherCoinAccount},
	}

	var wg sync.WaitGroup
	for _, a := range attempts {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, a.err = e.PlaceBid(ctx, a.bidder, domain.PlaceBidInput{
				AuctionID:             f.auction.ID,
				BidderCurrencyAccount: a.account,
				AuctionEscrowAccount:  f.escrowCoinAccount,
				Amount:                150,
			})
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, a := range attempts {
		switch {
		case a.err == nil:
			wins++
		case errors.Is(a.err, apperrors.New(apperrors.CodeBidTooLow, "")):
			losses++
		default:
			t.Fatalf("unexpected error for %s: %v", a.bidder, a.err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("wins = %d, losses = %d, want exactly one of each", wins, losses)
	}

	auction, err := e.GetAuction(ctx, f.auction.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.CurrentPrice != 150 {
		t.Errorf("current price = %d, want 150", auction.CurrentPrice)
	}
	if got := mustBalance(t, e, f.escrowCoinAccount); got != 150 {
		t.Errorf("escrow balance = %d, want exactly one bid escrowed (150)", got)
	}
}

// TestOutbidFundsStayEscrowed documents the missing refund path: once a
// bid is superseded, the earlier bidder's funds remain in the auction
// escrow account.
func TestOutbidFundsStayEscrowed(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	f := newFixture(t, e)
	ctx := context.Background()

	second := mustAccount(t, e, "bidder-2", f.coin, 1_000)
	for _, b := range []struct {
		bidder  domain.Identity
		account domain.Identity
		amount  uint64
	}{
		{f.bidder, f.bidderCoinAccount, 150},
		{"bidder-2", second, 200},
	} {
		if _, err := e.PlaceBid(ctx, b.bidder, domain.PlaceBidInput{
			AuctionID:             f.auction.ID,
			BidderCurrencyAccount: b.account,
			AuctionEscrowAccount:  f.escrowCoinAccount,
			Amount:                b.amount,
		}); err != nil {
			t.Fatalf("bid %d: %v", b.amount, err)
		}
	}

	if got := mustBalance(t, e, f.escrowCoinAccount); got != 350 {
		t.Errorf("escrow balance = %d, want both bids escrowed (350)", got)
	}
	if got := mustBalance(t, e, f.bidderCoinAccount); got != 850 {
		t.Errorf("outbid bidder balance = %d, want 850 (no refund)", got)
	}
}

func TestGetAuctionNotFound(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	_, err := e.GetAuction(context.Background(), "missing")
	wantCode(t, err, apperrors.CodeNotFound)
}

func TestDepositRequiresOwner(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, e, "owner-1", "coin-gold", 0)
	_, err := e.Deposit(ctx, "someone-else", account, 100)
	wantCode(t, err, apperrors.CodeAccountOwnerMismatch)
}
