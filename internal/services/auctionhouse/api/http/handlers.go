// Package http exposes the auction house engine over a JSON API.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/errors"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/engine"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/ledger"
)

// Handler serves auction house operations.
type Handler struct {
	Engine *engine.Engine
}

type houseResponse struct {
	ID                       string    `json:"id"`
	Authority                string    `json:"authority"`
	TreasuryCurrency         string    `json:"treasury_currency"`
	FeeAccount               string    `json:"fee_account"`
	TreasuryAccount          string    `json:"treasury_account"`
	FeeWithdrawalDestination string    `json:"fee_withdrawal_destination"`
	SellerFeeBasisPoints     uint16    `json:"seller_fee_basis_points"`
	RequiresSignOff          bool      `json:"requires_sign_off"`
	CanChangeSalePrice       bool      `json:"can_change_sale_price"`
	CreatedAt                time.Time `json:"created_at"`
}

type auctionResponse struct {
	ID               string    `json:"id"`
	Authority        string    `json:"authority"`
	AssetID          string    `json:"asset_id"`
	AssetAccount     string    `json:"asset_account"`
	TreasuryCurrency string    `json:"treasury_currency"`
	TokenSize        uint64    `json:"token_size"`
	MinimumPrice     uint64    `json:"minimum_price"`
	CurrentPrice     uint64    `json:"current_price"`
	EndTime          time.Time `json:"end_time"`
	HighestBidder    string    `json:"highest_bidder,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type bidResponse struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	Bidder    string    `json:"bidder"`
	Amount    uint64    `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Asset     string    `json:"asset"`
	Balance   uint64    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func toHouseResponse(house domain.House) houseResponse {
	return houseResponse{
		ID:                       string(house.ID),
		Authority:                string(house.Authority),
		TreasuryCurrency:         string(house.TreasuryCurrency),
		FeeAccount:               string(house.FeeAccount),
		TreasuryAccount:          string(house.TreasuryAccount),
		FeeWithdrawalDestination: string(house.FeeWithdrawalDestination),
		SellerFeeBasisPoints:     house.SellerFeeBasisPoints,
		RequiresSignOff:          house.RequiresSignOff,
		CanChangeSalePrice:       house.CanChangeSalePrice,
		CreatedAt:                house.CreatedAt,
	}
}

func toAuctionResponse(auction domain.Auction) auctionResponse {
	return auctionResponse{
		ID:               string(auction.ID),
		Authority:        string(auction.Authority),
		AssetID:          string(auction.AssetID),
		AssetAccount:     string(auction.AssetAccount),
		TreasuryCurrency: string(auction.TreasuryCurrency),
		TokenSize:        auction.TokenSize,
		MinimumPrice:     auction.MinimumPrice,
		CurrentPrice:     auction.CurrentPrice,
		EndTime:          auction.EndTime,
		HighestBidder:    string(auction.HighestBidder),
		Status:           auction.Status.String(),
		CreatedAt:        auction.CreatedAt,
		UpdatedAt:        auction.UpdatedAt,
	}
}

func toAccountResponse(account ledger.Account) accountResponse {
	return accountResponse{
		ID:        string(account.ID),
		Owner:     string(account.Owner),
		Asset:     string(account.Asset),
		Balance:   account.Balance,
		CreatedAt: account.CreatedAt,
	}
}

// renderError writes a JSON error body with the code's transport status.
func renderError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	c.JSON(code.HTTPStatus(), gin.H{
		"code":  string(code),
		"error": err.Error(),
	})
}

func (h *Handler) ConfigureHouse(c *gin.Context) {
	var input struct {
		TreasuryCurrency         string `json:"treasury_currency"`
		FeeWithdrawalDestination string `json:"fee_withdrawal_destination"`
		SellerFeeBasisPoints     uint16 `json:"seller_fee_basis_points"`
		RequiresSignOff          bool   `json:"requires_sign_off"`
		CanChangeSalePrice       bool   `json:"can_change_sale_price"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(apperrors.CodeUnknown), "error": err.Error()})
		return
	}

	house, err := h.Engine.ConfigureHouse(c.Request.Context(), callerIdentity(c), domain.ConfigureHouseInput{
		TreasuryCurrency:         domain.Identity(input.TreasuryCurrency),
		FeeWithdrawalDestination: domain.Identity(input.FeeWithdrawalDestination),
		SellerFeeBasisPoints:     input.SellerFeeBasisPoints,
		RequiresSignOff:          input.RequiresSignOff,
		CanChangeSalePrice:       input.CanChangeSalePrice,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toHouseResponse(house))
}

func (h *Handler) GetHouse(c *gin.Context) {
	house, err := h.Engine.GetHouse(c.Request.Context(), domain.Identity(c.Param("id")))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHouseResponse(house))
}

func (h *Handler) CreateAuction(c *gin.Context) {
	var input struct {
		AssetID            string    `json:"asset_id"`
		SellerAssetAccount string    `json:"seller_asset_account"`
		TreasuryCurrency   string    `json:"treasury_currency"`
		TokenSize          uint64    `json:"token_size"`
		MinimumPrice       uint64    `json:"minimum_price"`
		EndTime            time.Time `json:"end_time"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(apperrors.CodeUnknown), "error": err.Error()})
		return
	}

	auction, err := h.Engine.CreateAuction(c.Request.Context(), callerIdentity(c), domain.CreateAuctionInput{
		AssetID:            domain.Identity(input.AssetID),
		SellerAssetAccount: domain.Identity(input.SellerAssetAccount),
		TreasuryCurrency:   domain.Identity(input.TreasuryCurrency),
		TokenSize:          input.TokenSize,
		MinimumPrice:       input.MinimumPrice,
		EndTime:            input.EndTime,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *Handler) GetAuction(c *gin.Context) {
	auction, err := h.Engine.GetAuction(c.Request.Context(), domain.Identity(c.Param("id")))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *Handler) PlaceBid(c *gin.Context) {
	var input struct {
		BidderCurrencyAccount string `json:"bidder_currency_account"`
		AuctionEscrowAccount  string `json:"auction_escrow_account"`
		Amount                uint64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(apperrors.CodeUnknown), "error": err.Error()})
		return
	}

	bid, err := h.Engine.PlaceBid(c.Request.Context(), callerIdentity(c), domain.PlaceBidInput{
		AuctionID:             domain.Identity(c.Param("id")),
		BidderCurrencyAccount: domain.Identity(input.BidderCurrencyAccount),
		AuctionEscrowAccount:  domain.Identity(input.AuctionEscrowAccount),
		Amount:                input.Amount,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bidResponse{
		ID:        string(bid.ID),
		AuctionID: string(bid.AuctionID),
		Bidder:    string(bid.Bidder),
		Amount:    bid.Amount,
		PlacedAt:  bid.PlacedAt,
	})
}

func (h *Handler) EndAuction(c *gin.Context) {
	var input struct {
		AuctionAssetAccount string `json:"auction_asset_account"`
		WinnerAssetAccount  string `json:"winner_asset_account"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(apperrors.CodeUnknown), "error": err.Error()})
		return
	}

	if err := h.Engine.EndAuction(c.Request.Context(), domain.EndAuctionInput{
		AuctionID:           domain.Identity(c.Param("id")),
		AuctionAssetAccount: domain.Identity(input.AuctionAssetAccount),
		WinnerAssetAccount:  domain.Identity(input.WinnerAssetAccount),
	}); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *Handler) CancelAuction(c *gin.Context) {
	var input struct {
		AuctionAssetAccount string `json:"auction_asset_account"`
		SellerAssetAccount  string `json:"seller_asset_account"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(apperrors.CodeUnknown), "error": err.Error()})
		return
	}

	if err := h.Engine.CancelAuction(c.Request.Context(), callerIdentity(c), domain.CancelAuctionInput{
		AuctionID:           domain.Identity(c.Param("id")),
		AuctionAssetAccount: domain.Identity(input.AuctionAssetAccount),
		SellerAssetAccount:  domain.Identity(input.SellerAssetAccount),
	}); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var input struct {
		Asset string `json:"asset"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(apperrors.CodeUnknown), "error": err.Error()})
		return
	}

	account, err := h.Engine.CreateAccount(c.Request.Context(), callerIdentity(c), domain.Identity(input.Asset))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.Engine.GetAccount(c.Request.Context(), domain.Identity(c.Param("id")))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(account))
}

func (h *Handler) Deposit(c *gin.Context) {
	var input struct {
		Amount uint64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(apperrors.CodeUnknown), "error": err.Error()})
		return
	}

	account, err := h.Engine.Deposit(c.Request.Context(), callerIdentity(c), domain.Identity(c.Param("id")), input.Amount)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(account))
}
