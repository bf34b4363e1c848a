package domain

import (
	"strings"
	"time"

	apperrors "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/errors"
)

// House holds one auction house configuration. Exactly one house exists per
// authority identity; the record is immutable after creation.
type House struct {
	ID                       Identity
	Authority                Identity
	TreasuryCurrency         Identity
	FeeAccount               Identity
	TreasuryAccount          Identity
	FeeWithdrawalDestination Identity
	FeePayerSalt             byte
	TreasurySalt             byte
	SellerFeeBasisPoints     uint16
	RequiresSignOff          bool
	CanChangeSalePrice       bool
	Salt                     byte
	CreatedAt                time.Time
}

// ConfigureHouseInput describes the configuration needed to create a house.
type ConfigureHouseInput struct {
	TreasuryCurrency         Identity
	FeeWithdrawalDestination Identity
	SellerFeeBasisPoints     uint16
	RequiresSignOff          bool
	CanChangeSalePrice       bool
}

// NormalizeConfigureHouseInput trims and validates house configuration.
// Seller fee basis points are stored as provided; the 0-10000 range is not
// enforced here, matching the reference behavior.
func NormalizeConfigureHouseInput(input ConfigureHouseInput) (ConfigureHouseInput, error) {
	input.TreasuryCurrency = Identity(strings.TrimSpace(string(input.TreasuryCurrency)))
	input.FeeWithdrawalDestination = Identity(strings.TrimSpace(string(input.FeeWithdrawalDestination)))
	if input.TreasuryCurrency == "" {
		return ConfigureHouseInput{}, apperrors.New(apperrors.CodeHouseTreasuryCurrencyRequired, "treasury currency is required")
	}
	if input.FeeWithdrawalDestination == "" {
		return ConfigureHouseInput{}, apperrors.New(apperrors.CodeHouseFeeDestinationRequired, "fee withdrawal destination is required")
	}
	return input, nil
}
