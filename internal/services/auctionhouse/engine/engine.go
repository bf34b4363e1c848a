// Package engine implements the auction lifecycle operations.
//
// Each operation executes as one serialized, all-or-nothing unit of work
// against the record store and escrow ledger: validations run first, at
// most one transfer follows, and record mutations commit only if the
// transfer succeeded. Auction expiry is evaluated lazily at the moment a
// bid or end call arrives; no background task watches deadlines.
//
// Known open issues carried from the reference behavior, deliberately not
// fixed here: funds escrowed by outbid bidders are never refunded, and an
// auction that ends with no bids leaves its asset in the auction escrow
// account with no disposition path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/errors"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/id"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/ledger"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Engine validates and executes auction lifecycle operations.
type Engine struct {
	store  storage.Store
	clock  func() time.Time
	tracer trace.Tracer
}

// New creates an engine backed by the provided store.
func New(store storage.Store) *Engine {
	return &Engine{
		store:  store,
		clock:  time.Now,
		tracer: otel.Tracer("auctionhouse/engine"),
	}
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock().UTC()
}

// ConfigureHouse creates one auction house configuration for the caller
// plus its two zero-balance escrow accounts (fee, treasury). The house
// record itself controls both accounts. Fails when a house already exists
// for the caller.
func (e *Engine) ConfigureHouse(ctx context.Context, caller domain.Identity, input domain.ConfigureHouseInput) (domain.House, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ConfigureHouse")
	defer span.End()

	if caller == "" {
		return domain.House{}, apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	input, err := domain.NormalizeConfigureHouseInput(input)
	if err != nil {
		return domain.House{}, err
	}

	houseID, houseSalt := id.Derive(domain.SeedHouse, string(caller))
	feeAccountID, feeSalt := id.Derive(domain.SeedHouseFeeAccount, houseID)
	treasuryAccountID, treasurySalt := id.Derive(domain.SeedHouseTreasury, houseID)
	now := e.now()

	house := domain.House{
		ID:                       domain.Identity(houseID),
		Authority:                caller,
		TreasuryCurrency:         input.TreasuryCurrency,
		FeeAccount:               domain.Identity(feeAccountID),
		TreasuryAccount:          domain.Identity(treasuryAccountID),
		FeeWithdrawalDestination: input.FeeWithdrawalDestination,
		FeePayerSalt:             feeSalt,
		TreasurySalt:             treasurySalt,
		SellerFeeBasisPoints:     input.SellerFeeBasisPoints,
		RequiresSignOff:          input.RequiresSignOff,
		CanChangeSalePrice:       input.CanChangeSalePrice,
		Salt:                     houseSalt,
		CreatedAt:                now,
	}

	err = e.store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.CreateHouse(house); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return apperrors.New(apperrors.CodeHouseAlreadyExists, "auction house already exists for this authority")
			}
			return fmt.Errorf("create house: %w", err)
		}
		for _, account := range []ledger.Account{
			{ID: house.FeeAccount, Owner: house.ID, Asset: house.TreasuryCurrency, CreatedAt: now},
			{ID: house.TreasuryAccount, Owner: house.ID, Asset: house.TreasuryCurrency, CreatedAt: now},
		} {
			if err := tx.CreateAccount(account); err != nil {
				if errors.Is(err, ledger.ErrAlreadyExists) {
					return apperrors.New(apperrors.CodeAccountAlreadyExists, "house escrow account already exists")
				}
				return fmt.Errorf("create house escrow account: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.House{}, err
	}
	return house, nil
}

// CreateAuction opens one auction for the caller's asset. The provided
// asset account must be owned by the caller and hold the stated asset; it
// becomes the auction's escrow account, controlled from then on by the
// auction's derived authority so end and cancel can move the asset without
// a human signer. The end time is not checked against the current time.
func (e *Engine) CreateAuction(ctx context.Context, caller domain.Identity, input domain.CreateAuctionInput) (domain.Auction, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CreateAuction")
	defer span.End()

	if caller == "" {
		return domain.Auction{}, apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	input, err := domain.NormalizeCreateAuctionInput(input)
	if err != nil {
		return domain.Auction{}, err
	}

	auctionID, auctionSalt := id.Derive(domain.SeedAuction, string(input.AssetID), string(caller))
	auctionAuthority, _ := id.Derive(domain.SeedAuctionAuthority, auctionID)
	now := e.now()

	auction := domain.Auction{
		ID:               domain.Identity(auctionID),
		Authority:        caller,
		AssetID:          input.AssetID,
		AssetAccount:     input.SellerAssetAccount,
		TreasuryCurrency: input.TreasuryCurrency,
		TokenSize:        input.TokenSize,
		MinimumPrice:     input.MinimumPrice,
		CurrentPrice:     input.MinimumPrice,
		EndTime:          input.EndTime.UTC(),
		Status:           domain.StatusActive,
		Salt:             auctionSalt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = e.store.Update(ctx, func(tx storage.Tx) error {
		account, err := tx.GetAccount(input.SellerAssetAccount)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "seller asset account not found")
			}
			return fmt.Errorf("load seller asset account: %w", err)
		}
		if account.Owner != caller {
			return apperrors.New(apperrors.CodeAccountOwnerMismatch, "seller asset account is not owned by caller")
		}
		if account.Asset != input.AssetID {
			return apperrors.New(apperrors.CodeAccountAssetMismatch, "seller asset account does not hold the auctioned asset")
		}
		if err := tx.CreateAuction(auction); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return apperrors.New(apperrors.CodeAuctionAlreadyExists, "auction already exists for this asset and seller")
			}
			return fmt.Errorf("create auction: %w", err)
		}
		// Escrow the asset account under the auction's derived authority so
		// only the auction itself can move the asset out.
		if err := tx.SetAccountOwner(input.SellerAssetAccount, domain.Identity(auctionAuthority)); err != nil {
			return fmt.Errorf("escrow asset account: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Auction{}, err
	}
	return auction, nil
}

// PlaceBid escrows a new highest bid. Validation order: the auction must
// be active, the deadline must not have passed, and the amount must
// strictly exceed the current price. A bidder may bid at most once per
// auction. The transfer into escrow and the record updates share one unit
// of work, so a failed transfer leaves no state behind. Funds from a bid
// that is later outbid stay escrowed; there is no refund path.
func (e *Engine) PlaceBid(ctx context.Context, caller domain.Identity, input domain.PlaceBidInput) (domain.Bid, error) {
	ctx, span := e.tracer.Start(ctx, "engine.PlaceBid")
	defer span.End()

	if caller == "" {
		return domain.Bid{}, apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	input, err := domain.NormalizePlaceBidInput(input)
	if err != nil {
		return domain.Bid{}, err
	}
	now := e.now()

	var bid domain.Bid
	err = e.store.Update(ctx, func(tx storage.Tx) error {
		auction, err := tx.GetAuction(input.AuctionID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "auction not found")
			}
			return fmt.Errorf("load auction: %w", err)
		}

		if auction.Status != domain.StatusActive {
			return apperrors.WithMetadata(apperrors.CodeAuctionNotActive, "auction is not active",
				map[string]string{"status": auction.Status.String()})
		}
		if !now.Before(auction.EndTime) {
			return apperrors.New(apperrors.CodeAuctionEnded, "auction has ended")
		}
		if input.Amount <= auction.CurrentPrice {
			return apperrors.WithMetadata(apperrors.CodeBidTooLow, "bid does not exceed current price",
				map[string]string{"current_price": strconv.FormatUint(auction.CurrentPrice, 10)})
		}

		// One bid per bidder per auction, checked up front so the failure
		// is intentional rather than a storage side effect.
		if _, err := tx.GetBid(auction.ID, caller); err == nil {
			return apperrors.New(apperrors.CodeBidAlreadyPlaced, "bidder already placed a bid on this auction")
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("check existing bid: %w", err)
		}

		bidderAccount, err := tx.GetAccount(input.BidderCurrencyAccount)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "bidder currency account not found")
			}
			return fmt.Errorf("load bidder currency account: %w", err)
		}
		if bidderAccount.Owner != caller {
			return apperrors.New(apperrors.CodeAccountOwnerMismatch, "bidder currency account is not owned by caller")
		}
		if bidderAccount.Asset != auction.TreasuryCurrency {
			return apperrors.New(apperrors.CodeAccountCurrencyMismatch, "bidder currency account does not hold the settlement currency")
		}

		escrowAccount, err := tx.GetAccount(input.AuctionEscrowAccount)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "auction escrow account not found")
			}
			return fmt.Errorf("load auction escrow account: %w", err)
		}
		if escrowAccount.Asset != auction.TreasuryCurrency {
			return apperrors.New(apperrors.CodeAccountCurrencyMismatch, "auction escrow account does not hold the settlement currency")
		}

		if err := tx.Transfer(bidderAccount.ID, escrowAccount.ID, input.Amount, caller); err != nil {
			return mapLedgerError(err, "escrow bid funds")
		}

		auction.CurrentPrice = input.Amount
		auction.HighestBidder = caller
		auction.UpdatedAt = now
		if err := tx.UpdateAuction(auction); err != nil {
			return fmt.Errorf("update auction: %w", err)
		}

		bidID, _ := id.Derive(domain.SeedBid, string(auction.ID), string(caller))
		bid = domain.Bid{
			ID:        domain.Identity(bidID),
			AuctionID: auction.ID,
			Bidder:    caller,
			Amount:    input.Amount,
			PlacedAt:  now,
		}
		if err := tx.CreateBid(bid); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return apperrors.New(apperrors.CodeBidAlreadyPlaced, "bidder already placed a bid on this auction")
			}
			return fmt.Errorf("create bid: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Bid{}, err
	}
	return bid, nil
}

// EndAuction resolves an auction at or after its deadline. Anyone may
// call it. If a highest bidder exists, the full asset quantity moves from
// the auction's escrow account to the winner's asset account, authorized
// by the auction's derived authority. With no bids the asset stays in
// escrow. Ended is terminal.
func (e *Engine) EndAuction(ctx context.Context, input domain.EndAuctionInput) error {
	ctx, span := e.tracer.Start(ctx, "engine.EndAuction")
	defer span.End()

	now := e.now()
	return e.store.Update(ctx, func(tx storage.Tx) error {
		auction, err := tx.GetAuction(input.AuctionID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "auction not found")
			}
			return fmt.Errorf("load auction: %w", err)
		}

		if now.Before(auction.EndTime) {
			return apperrors.New(apperrors.CodeAuctionNotEnded, "auction has not ended yet")
		}
		if auction.Status != domain.StatusActive {
			return apperrors.WithMetadata(apperrors.CodeAuctionNotActive, "auction is not active",
				map[string]string{"status": auction.Status.String()})
		}
		if input.AuctionAssetAccount != auction.AssetAccount {
			return apperrors.New(apperrors.CodeAccountAssetMismatch, "account is not the auction's asset account")
		}

		auction.Status = domain.StatusEnded
		auction.UpdatedAt = now

		if auction.HighestBidder != "" {
			winnerAccount, err := tx.GetAccount(input.WinnerAssetAccount)
			if err != nil {
				if errors.Is(err, ledger.ErrNotFound) {
					return apperrors.New(apperrors.CodeNotFound, "winner asset account not found")
				}
				return fmt.Errorf("load winner asset account: %w", err)
			}
			if winnerAccount.Owner != auction.HighestBidder {
				return apperrors.New(apperrors.CodeAccountOwnerMismatch, "winner asset account is not owned by the highest bidder")
			}
			if winnerAccount.Asset != auction.AssetID {
				return apperrors.New(apperrors.CodeAccountAssetMismatch, "winner asset account does not hold the auctioned asset")
			}

			authority, _ := id.Derive(domain.SeedAuctionAuthority, string(auction.ID))
			if err := tx.Transfer(auction.AssetAccount, winnerAccount.ID, auction.TokenSize, domain.Identity(authority)); err != nil {
				return mapLedgerError(err, "release asset to winner")
			}
		}

		if err := tx.UpdateAuction(auction); err != nil {
			return fmt.Errorf("update auction: %w", err)
		}
		return nil
	})
}

// CancelAuction withdraws an active auction. Only the seller authority
// may cancel. The full asset quantity moves back to the seller's account,
// authorized by the auction's derived authority. Previously escrowed bid
// funds are not returned. Cancelled is terminal.
func (e *Engine) CancelAuction(ctx context.Context, caller domain.Identity, input domain.CancelAuctionInput) error {
	ctx, span := e.tracer.Start(ctx, "engine.CancelAuction")
	defer span.End()

	if caller == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	now := e.now()
	return e.store.Update(ctx, func(tx storage.Tx) error {
		auction, err := tx.GetAuction(input.AuctionID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "auction not found")
			}
			return fmt.Errorf("load auction: %w", err)
		}

		if caller != auction.Authority {
			return apperrors.New(apperrors.CodeUnauthorized, "only the auction authority may cancel")
		}
		if auction.Status != domain.StatusActive {
			return apperrors.WithMetadata(apperrors.CodeAuctionNotActive, "auction is not active",
				map[string]string{"status": auction.Status.String()})
		}
		if input.AuctionAssetAccount != auction.AssetAccount {
			return apperrors.New(apperrors.CodeAccountAssetMismatch, "account is not the auction's asset account")
		}

		sellerAccount, err := tx.GetAccount(input.SellerAssetAccount)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "seller asset account not found")
			}
			return fmt.Errorf("load seller asset account: %w", err)
		}
		if sellerAccount.Owner != auction.Authority {
			return apperrors.New(apperrors.CodeAccountOwnerMismatch, "seller asset account is not owned by the auction authority")
		}
		if sellerAccount.Asset != auction.AssetID {
			return apperrors.New(apperrors.CodeAccountAssetMismatch, "seller asset account does not hold the auctioned asset")
		}

		auction.Status = domain.StatusCancelled
		auction.UpdatedAt = now

		authority, _ := id.Derive(domain.SeedAuctionAuthority, string(auction.ID))
		if err := tx.Transfer(auction.AssetAccount, sellerAccount.ID, auction.TokenSize, domain.Identity(authority)); err != nil {
			return mapLedgerError(err, "return asset to seller")
		}

		if err := tx.UpdateAuction(auction); err != nil {
			return fmt.Errorf("update auction: %w", err)
		}
		return nil
	})
}

// GetAuction returns one auction record by id.
func (e *Engine) GetAuction(ctx context.Context, auctionID domain.Identity) (domain.Auction, error) {
	var auction domain.Auction
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		auction, err = tx.GetAuction(auctionID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "auction not found")
		}
		return err
	})
	if err != nil {
		return domain.Auction{}, err
	}
	return auction, nil
}

// GetHouse returns one house configuration by id.
func (e *Engine) GetHouse(ctx context.Context, houseID domain.Identity) (domain.House, error) {
	var house domain.House
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		house, err = tx.GetHouse(houseID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "auction house not found")
		}
		return err
	})
	if err != nil {
		return domain.House{}, err
	}
	return house, nil
}

// CreateAccount creates one value account owned by the caller.
func (e *Engine) CreateAccount(ctx context.Context, caller, asset domain.Identity) (ledger.Account, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CreateAccount")
	defer span.End()

	if caller == "" {
		return ledger.Account{}, apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	if asset == "" {
		return ledger.Account{}, apperrors.New(apperrors.CodeAccountAssetRequired, "asset is required")
	}

	accountID, err := id.New()
	if err != nil {
		return ledger.Account{}, fmt.Errorf("generate account id: %w", err)
	}
	account := ledger.Account{
		ID:        domain.Identity(accountID),
		Owner:     caller,
		Asset:     asset,
		CreatedAt: e.now(),
	}
	err = e.store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.CreateAccount(account); err != nil {
			if errors.Is(err, ledger.ErrAlreadyExists) {
				return apperrors.New(apperrors.CodeAccountAlreadyExists, "account already exists")
			}
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return account, nil
}

// Deposit credits the caller's account. Only the account owner may fund it.
func (e *Engine) Deposit(ctx context.Context, caller, accountID domain.Identity, amount uint64) (ledger.Account, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Deposit")
	defer span.End()

	if caller == "" {
		return ledger.Account{}, apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	if amount == 0 {
		return ledger.Account{}, apperrors.New(apperrors.CodeDepositAmountRequired, "deposit amount must be greater than zero")
	}

	var account ledger.Account
	err := e.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		account, err = tx.GetAccount(accountID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "account not found")
			}
			return fmt.Errorf("load account: %w", err)
		}
		if account.Owner != caller {
			return apperrors.New(apperrors.CodeAccountOwnerMismatch, "account is not owned by caller")
		}
		if err := tx.Deposit(accountID, amount); err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		account.Balance += amount
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return account, nil
}

// GetAccount returns one value account by id.
func (e *Engine) GetAccount(ctx context.Context, accountID domain.Identity) (ledger.Account, error) {
	var account ledger.Account
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		account, err = tx.GetAccount(accountID)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "account not found")
		}
		return err
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return account, nil
}

func mapLedgerError(err error, action string) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apperrors.Wrap(apperrors.CodeInsufficientFunds, action+": insufficient funds", err)
	case errors.Is(err, ledger.ErrUnauthorized):
		return apperrors.Wrap(apperrors.CodeUnauthorized, action+": transfer not authorized", err)
	case errors.Is(err, ledger.ErrAssetMismatch):
		return apperrors.Wrap(apperrors.CodeAccountAssetMismatch, action+": account asset mismatch", err)
	case errors.Is(err, ledger.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, action+": account not found", err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}
