package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	apperrors "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/errors"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/engine"
)

const identityKey = "auctionhouse.identity"

// NewRouter builds the JSON API router. All /v1 routes require a verified
// bearer token except the auction and account reads, which are public.
func NewRouter(e *engine.Engine, auth AuthConfig, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName))

	handler := &Handler{Engine: e}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.GET("/auctions/:id", handler.GetAuction)
	v1.GET("/houses/:id", handler.GetHouse)
	v1.GET("/accounts/:id", handler.GetAccount)

	authed := v1.Group("", requireBearer(auth))
	authed.POST("/houses", handler.ConfigureHouse)
	authed.POST("/auctions", handler.CreateAuction)
	authed.POST("/auctions/:id/bids", handler.PlaceBid)
	authed.POST("/auctions/:id/end", handler.EndAuction)
	authed.POST("/auctions/:id/cancel", handler.CancelAuction)
	authed.POST("/accounts", handler.CreateAccount)
	authed.POST("/accounts/:id/deposits", handler.Deposit)

	return router
}

// requireBearer verifies the Authorization header and stores the caller
// identity on the request context.
func requireBearer(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			renderError(c, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required"))
			c.Abort()
			return
		}
		identity, err := VerifyBearer(token, cfg)
		if err != nil {
			renderError(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// callerIdentity returns the verified identity set by requireBearer, or
// empty for unauthenticated routes.
func callerIdentity(c *gin.Context) domain.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return ""
	}
	identity, _ := value.(domain.Identity)
	return identity
}
