package errors

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Auction lifecycle errors
	CodeAuctionNotActive Code = "AUCTION_NOT_ACTIVE"
	CodeAuctionEnded     Code = "AUCTION_ENDED"
	CodeAuctionNotEnded  Code = "AUCTION_NOT_ENDED"
	CodeBidTooLow        Code = "BID_TOO_LOW"
	CodeUnauthorized     Code = "UNAUTHORIZED"

	// Uniqueness errors
	CodeHouseAlreadyExists   Code = "HOUSE_ALREADY_EXISTS"
	CodeAuctionAlreadyExists Code = "AUCTION_ALREADY_EXISTS"
	CodeBidAlreadyPlaced     Code = "BID_ALREADY_PLACED"
	CodeAccountAlreadyExists Code = "ACCOUNT_ALREADY_EXISTS"

	// Account errors
	CodeAccountOwnerMismatch    Code = "ACCOUNT_OWNER_MISMATCH"
	CodeAccountAssetMismatch    Code = "ACCOUNT_ASSET_MISMATCH"
	CodeAccountCurrencyMismatch Code = "ACCOUNT_CURRENCY_MISMATCH"
	CodeInsufficientFunds       Code = "INSUFFICIENT_FUNDS"

	// Validation errors
	CodeHouseTreasuryCurrencyRequired   Code = "HOUSE_TREASURY_CURRENCY_REQUIRED"
	CodeHouseFeeDestinationRequired     Code = "HOUSE_FEE_DESTINATION_REQUIRED"
	CodeAuctionAssetRequired            Code = "AUCTION_ASSET_REQUIRED"
	CodeAuctionAssetAccountRequired     Code = "AUCTION_ASSET_ACCOUNT_REQUIRED"
	CodeAuctionTreasuryCurrencyRequired Code = "AUCTION_TREASURY_CURRENCY_REQUIRED"
	CodeAuctionEndTimeRequired          Code = "AUCTION_END_TIME_REQUIRED"
	CodeBidAccountRequired              Code = "BID_ACCOUNT_REQUIRED"
	CodeBidEscrowAccountRequired        Code = "BID_ESCROW_ACCOUNT_REQUIRED"
	CodeAccountAssetRequired            Code = "ACCOUNT_ASSET_REQUIRED"
	CodeDepositAmountRequired           Code = "DEPOSIT_AMOUNT_REQUIRED"

	// Identity errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeHouseTreasuryCurrencyRequired,
		CodeHouseFeeDestinationRequired,
		CodeAuctionAssetRequired,
		CodeAuctionAssetAccountRequired,
		CodeAuctionTreasuryCurrencyRequired,
		CodeAuctionEndTimeRequired,
		CodeBidAccountRequired,
		CodeBidEscrowAccountRequired,
		CodeAccountAssetRequired,
		CodeDepositAmountRequired:
		return http.StatusBadRequest

	// Unauthenticated - missing or invalid caller identity
	case CodeUnauthenticated:
		return http.StatusUnauthorized

	// Forbidden - caller does not match required authority
	case CodeUnauthorized:
		return http.StatusForbidden

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - state doesn't allow operation, or record already exists
	case CodeAuctionNotActive,
		CodeAuctionEnded,
		CodeAuctionNotEnded,
		CodeBidTooLow,
		CodeHouseAlreadyExists,
		CodeAuctionAlreadyExists,
		CodeBidAlreadyPlaced,
		CodeAccountAlreadyExists,
		CodeAccountOwnerMismatch,
		CodeAccountAssetMismatch,
		CodeAccountCurrencyMismatch,
		CodeInsufficientFunds:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}
