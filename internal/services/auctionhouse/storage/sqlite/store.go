// Package sqlite provides a SQLite-backed auction house store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/platform/storage/sqlitemigrate"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/ledger"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/storage"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists auction house state in SQLite. Write transactions take
// the database write lock immediately, so units of work against the same
// auction are serialized by the store.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite auction house store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Update runs fn inside one write transaction. The transaction commits
// only if fn returns nil; any error rolls back every record mutation and
// transfer made inside it.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.run(ctx, fn)
}

// View runs fn inside one transaction for reads.
func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("transaction function is required")
	}

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	wrapped := &Tx{ctx: ctx, sqlTx: sqlTx}
	if err := fn(wrapped); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Tx implements one storage unit of work over a SQLite transaction.
type Tx struct {
	ctx   context.Context
	sqlTx *sql.Tx
}

// CreateHouse inserts one house record, rejecting an existing key.
func (t *Tx) CreateHouse(house domain.House) error {
	_, err := t.sqlTx.ExecContext(
		t.ctx,
		`INSERT INTO houses (
		   id, authority, treasury_currency, fee_account, treasury_account,
		   fee_withdrawal_destination, fee_payer_salt, treasury_salt,
		   seller_fee_basis_points, requires_sign_off, can_change_sale_price,
		   salt, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(house.ID),
		string(house.Authority),
		string(house.TreasuryCurrency),
		string(house.FeeAccount),
		string(house.TreasuryAccount),
		string(house.FeeWithdrawalDestination),
		int64(house.FeePayerSalt),
		int64(house.TreasurySalt),
		int64(house.SellerFeeBasisPoints),
		boolToInt(house.RequiresSignOff),
		boolToInt(house.CanChangeSalePrice),
		int64(house.Salt),
		toMillis(house.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create house: %w", err)
	}
	return nil
}

// GetHouse returns one house record by id.
func (t *Tx) GetHouse(id domain.Identity) (domain.House, error) {
	row := t.sqlTx.QueryRowContext(
		t.ctx,
		`SELECT id, authority, treasury_currency, fee_account, treasury_account,
		        fee_withdrawal_destination, fee_payer_salt, treasury_salt,
		        seller_fee_basis_points, requires_sign_off, can_change_sale_price,
		        salt, created_at
		   FROM houses
		  WHERE id = ?`,
		string(id),
	)

	var house domain.House
	var feePayerSalt, treasurySalt, salt int64
	var basisPoints int64
	var requiresSignOff, canChangeSalePrice int64
	var createdAt int64
	err := row.Scan(
		&house.ID,
		&house.Authority,
		&house.TreasuryCurrency,
		&house.FeeAccount,
		&house.TreasuryAccount,
		&house.FeeWithdrawalDestination,
		&feePayerSalt,
		&treasurySalt,
		&basisPoints,
		&requiresSignOff,
		&canChangeSalePrice,
		&salt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.House{}, storage.ErrNotFound
		}
		return domain.House{}, fmt.Errorf("get house: %w", err)
	}
	house.FeePayerSalt = byte(feePayerSalt)
	house.TreasurySalt = byte(treasurySalt)
	house.SellerFeeBasisPoints = uint16(basisPoints)
	house.RequiresSignOff = requiresSignOff != 0
	house.CanChangeSalePrice = canChangeSalePrice != 0
	house.Salt = byte(salt)
	house.CreatedAt = fromMillis(createdAt)
	return house, nil
}

// CreateAuction inserts one auction record, rejecting an existing key.
func (t *Tx) CreateAuction(auction domain.Auction) error {
	_, err := t.sqlTx.ExecContext(
		t.ctx,
		`INSERT INTO auctions (
		   id, authority, asset_id, asset_account, treasury_currency,
		   token_size, minimum_price, current_price, end_time,
		   highest_bidder, status, salt, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(auction.ID),
		string(auction.Authority),
		string(auction.AssetID),
		string(auction.AssetAccount),
		string(auction.TreasuryCurrency),
		int64(auction.TokenSize),
		int64(auction.MinimumPrice),
		int64(auction.CurrentPrice),
		toMillis(auction.EndTime),
		string(auction.HighestBidder),
		int64(auction.Status),
		int64(auction.Salt),
		toMillis(auction.CreatedAt),
		toMillis(auction.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

// GetAuction returns one auction record by id.
func (t *Tx) GetAuction(id domain.Identity) (domain.Auction, error) {
	row := t.sqlTx.QueryRowContext(
		t.ctx,
		`SELECT id, authority, asset_id, asset_account, treasury_currency,
		        token_size, minimum_price, current_price, end_time,
		        highest_bidder, status, salt, created_at, updated_at
		   FROM auctions
		  WHERE id = ?`,
		string(id),
	)
	return scanAuction(row)
}

func scanAuction(row *sql.Row) (domain.Auction, error) {
	var auction domain.Auction
	var tokenSize, minimumPrice, currentPrice int64
	var endTime, createdAt, updatedAt int64
	var status, salt int64
	err := row.Scan(
		&auction.ID,
		&auction.Authority,
		&auction.AssetID,
		&auction.AssetAccount,
		&auction.TreasuryCurrency,
		&tokenSize,
		&minimumPrice,
		&currentPrice,
		&endTime,
		&auction.HighestBidder,
		&status,
		&salt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Auction{}, storage.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("get auction: %w", err)
	}
	auction.TokenSize = uint64(tokenSize)
	auction.MinimumPrice = uint64(minimumPrice)
	auction.CurrentPrice = uint64(currentPrice)
	auction.EndTime = fromMillis(endTime)
	auction.Status = domain.Status(status)
	auction.Salt = byte(salt)
	auction.CreatedAt = fromMillis(createdAt)
	auction.UpdatedAt = fromMillis(updatedAt)
	return auction, nil
}

// UpdateAuction writes back a mutated auction record.
func (t *Tx) UpdateAuction(auction domain.Auction) error {
	result, err := t.sqlTx.ExecContext(
		t.ctx,
		`UPDATE auctions
		    SET current_price = ?, highest_bidder = ?, status = ?, updated_at = ?
		  WHERE id = ?`,
		int64(auction.CurrentPrice),
		string(auction.HighestBidder),
		int64(auction.Status),
		toMillis(auction.UpdatedAt),
		string(auction.ID),
	)
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateBid inserts one bid record, rejecting an existing (auction, bidder) key.
func (t *Tx) CreateBid(bid domain.Bid) error {
	_, err := t.sqlTx.ExecContext(
		t.ctx,
		`INSERT INTO bids (id, auction_id, bidder, amount, placed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(bid.ID),
		string(bid.AuctionID),
		string(bid.Bidder),
		int64(bid.Amount),
		toMillis(bid.PlacedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create bid: %w", err)
	}
	return nil
}

// GetBid returns one bid record by (auction, bidder).
func (t *Tx) GetBid(auctionID, bidder domain.Identity) (domain.Bid, error) {
	row := t.sqlTx.QueryRowContext(
		t.ctx,
		`SELECT id, auction_id, bidder, amount, placed_at
		   FROM bids
		  WHERE auction_id = ? AND bidder = ?`,
		string(auctionID),
		string(bidder),
	)

	var bid domain.Bid
	var amount, placedAt int64
	err := row.Scan(&bid.ID, &bid.AuctionID, &bid.Bidder, &amount, &placedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bid{}, storage.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("get bid: %w", err)
	}
	bid.Amount = uint64(amount)
	bid.PlacedAt = fromMillis(placedAt)
	return bid, nil
}

// CreateAccount inserts one escrow account, rejecting an existing key.
func (t *Tx) CreateAccount(account ledger.Account) error {
	_, err := t.sqlTx.ExecContext(
		t.ctx,
		`INSERT INTO accounts (id, owner, asset, balance, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(account.ID),
		string(account.Owner),
		string(account.Asset),
		int64(account.Balance),
		toMillis(account.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrAlreadyExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount returns one escrow account by id.
func (t *Tx) GetAccount(id domain.Identity) (ledger.Account, error) {
	row := t.sqlTx.QueryRowContext(
		t.ctx,
		`SELECT id, owner, asset, balance, created_at FROM accounts WHERE id = ?`,
		string(id),
	)

	var account ledger.Account
	var balance, createdAt int64
	err := row.Scan(&account.ID, &account.Owner, &account.Asset, &balance, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Account{}, ledger.ErrNotFound
		}
		return ledger.Account{}, fmt.Errorf("get account: %w", err)
	}
	account.Balance = uint64(balance)
	account.CreatedAt = fromMillis(createdAt)
	return account, nil
}

// SetAccountOwner reassigns control of an account. Only the engine calls
// this, to escrow an auction's asset account under its derived authority.
func (t *Tx) SetAccountOwner(id, owner domain.Identity) error {
	result, err := t.sqlTx.ExecContext(
		t.ctx,
		`UPDATE accounts SET owner = ? WHERE id = ?`,
		string(owner),
		string(id),
	)
	if err != nil {
		return fmt.Errorf("set account owner: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set account owner: %w", err)
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Deposit credits an account balance.
func (t *Tx) Deposit(id domain.Identity, amount uint64) error {
	result, err := t.sqlTx.ExecContext(
		t.ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ?`,
		int64(amount),
		string(id),
	)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Transfer moves amount between accounts. The authorizing identity must
// own the source account, the accounts must hold the same asset, and the
// source balance must cover the amount; otherwise nothing moves.
func (t *Tx) Transfer(from, to domain.Identity, amount uint64, authorizedBy domain.Identity) error {
	source, err := t.GetAccount(from)
	if err != nil {
		return err
	}
	destination, err := t.GetAccount(to)
	if err != nil {
		return err
	}
	if source.Owner != authorizedBy {
		return ledger.ErrUnauthorized
	}
	if source.Asset != destination.Asset {
		return ledger.ErrAssetMismatch
	}
	if source.Balance < amount {
		return ledger.ErrInsufficientFunds
	}

	if _, err := t.sqlTx.ExecContext(
		t.ctx,
		`UPDATE accounts SET balance = balance - ? WHERE id = ?`,
		int64(amount),
		string(from),
	); err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if _, err := t.sqlTx.ExecContext(
		t.ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ?`,
		int64(amount),
		string(to),
	); err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
var _ storage.Tx = (*Tx)(nil)
